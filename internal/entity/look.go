package entity

import "time"

// DbLook is a priced outfit composed for one user. Its items never change
// after insert; only the generation fields move with the render job.
type DbLook struct {
	ID               uint         `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	UserID           uint         `gorm:"column:user_id;index;not null" json:"user_id"`
	Strategy         string       `gorm:"column:strategy;type:varchar(64)" json:"strategy"`
	Occasion         string       `gorm:"column:occasion;type:varchar(128)" json:"occasion,omitempty"`
	TotalPrice       int64        `gorm:"column:total_price;not null" json:"total_price"`
	Currency         string       `gorm:"column:currency;type:varchar(8)" json:"currency"`
	StyleTags        StringArray  `gorm:"column:style_tags;type:json" json:"style_tags"`
	Commentary       string       `gorm:"column:commentary;type:text" json:"commentary"`
	TargetGender     Gender       `gorm:"column:target_gender;type:varchar(16)" json:"target_gender,omitempty"`
	TargetBudget     BudgetTier   `gorm:"column:target_budget;type:varchar(16)" json:"target_budget,omitempty"`
	GenerationStatus JobStatus    `gorm:"column:generation_status;type:varchar(16);not null;default:pending" json:"generation_status"`
	ImageURL         string       `gorm:"column:image_url;type:text" json:"image_url,omitempty"`
	Items            []DbLookItem `gorm:"foreignKey:LookID" json:"items"`
}

func (DbLook) TableName() string {
	return "looks"
}

// DbLookItem keeps the ordered item references of a look with a snapshot of
// the fields shown alongside it.
type DbLookItem struct {
	ID            uint     `gorm:"primarykey" json:"-"`
	LookID        uint     `gorm:"column:look_id;index;not null" json:"-"`
	Position      int      `gorm:"column:position;not null" json:"position"`
	CatalogItemID uint     `gorm:"column:catalog_item_id;index;not null" json:"item_id"`
	Name          string   `gorm:"column:name;type:varchar(255)" json:"name"`
	Category      Category `gorm:"column:category;type:varchar(32)" json:"category"`
	Price         int64    `gorm:"column:price;not null" json:"price"`
	ImageURL      string   `gorm:"column:image_url;type:text" json:"image_url,omitempty"`
}

func (DbLookItem) TableName() string {
	return "look_items"
}

// ImageURLs returns the item images in look order, skipping blanks.
func (l *DbLook) ImageURLs() []string {
	if l == nil {
		return nil
	}
	urls := make([]string, 0, len(l.Items))
	for _, item := range l.Items {
		if item.ImageURL != "" {
			urls = append(urls, item.ImageURL)
		}
	}
	return urls
}

type LookQuery struct {
	BaseParams
	UserID uint `json:"-"`
}

type ComposeLookRequest struct {
	Occasion string `json:"occasion"`
}

type LookListResponse struct {
	Looks []DbLook `json:"looks"`
	Meta  *Meta    `json:"meta"`
}

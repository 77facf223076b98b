package look

import (
	"strings"
)

type occasionBucket struct {
	name      string
	keywords  []string
	templates []string
}

// buckets are matched in order against the lower-cased occasion.
var buckets = []occasionBucket{
	{
		name:     "date",
		keywords: []string{"date", "dinner", "romantic", "anniversary"},
		templates: []string{
			"This look is made for a memorable evening. %s keeps it effortless without trying too hard.",
			"Soft lines and a confident finish. Pair %s and let the night do the rest.",
			"Date-ready and relaxed: %s strikes the balance between polished and approachable.",
		},
	},
	{
		name:     "work",
		keywords: []string{"work", "office", "meeting", "interview", "business"},
		templates: []string{
			"Sharp enough for the boardroom, comfortable enough for the whole day. %s does the talking.",
			"A clean professional line built around %s.",
			"Office-ready without feeling stiff. %s keeps it modern.",
		},
	},
	{
		name:     "casual",
		keywords: []string{"casual", "weekend", "brunch", "everyday", "errand"},
		templates: []string{
			"Easy weekend energy. Throw on %s and go.",
			"Laid-back and put together: %s covers every errand in style.",
			"Comfort first, style never optional. %s nails it.",
		},
	},
	{
		name:     "party",
		keywords: []string{"party", "club", "celebration", "festival", "wedding"},
		templates: []string{
			"Ready to turn heads. %s brings the energy.",
			"Statement pieces for a night out: %s.",
			"Celebrate in style with %s.",
		},
	},
}

var genericTemplates = []string{
	"A balanced outfit built around %s.",
	"Curated for your style: %s.",
	"Mix, match and make it yours, starting with %s.",
}

// templatesFor returns the bucket name and templates for occasion.
func templatesFor(occasion string) (string, []string) {
	needle := strings.ToLower(strings.TrimSpace(occasion))
	if needle != "" {
		for _, b := range buckets {
			for _, kw := range b.keywords {
				if strings.Contains(needle, kw) {
					return b.name, b.templates
				}
			}
		}
	}
	return "generic", genericTemplates
}

// describeItems joins item names as "a, b and c".
func describeItems(names []string) string {
	switch len(names) {
	case 0:
		return "these pieces"
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

func greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return "Hey " + name + "! "
}

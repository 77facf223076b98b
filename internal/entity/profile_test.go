package entity

import "testing"

func TestParseGender(t *testing.T) {
	tests := []struct {
		input       string
		wantCatalog Gender
		wantProfile Gender
	}{
		{"male", GenderMale, GenderMale},
		{" FEMALE ", GenderFemale, GenderFemale},
		{"unisex", GenderUnisex, GenderUnspecified},
		{"", GenderUnspecified, GenderUnspecified},
		{"other", GenderUnspecified, GenderUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseGender(tt.input); got != tt.wantCatalog {
				t.Fatalf("ParseGender(%q) = %q, want %q", tt.input, got, tt.wantCatalog)
			}
			if got := ParseProfileGender(tt.input); got != tt.wantProfile {
				t.Fatalf("ParseProfileGender(%q) = %q, want %q", tt.input, got, tt.wantProfile)
			}
		})
	}
}

func TestPreferenceProfileIgnoresStoredUnisex(t *testing.T) {
	user := &DbUser{Gender: "unisex"}
	if got := user.PreferenceProfile().Gender; got != GenderUnspecified {
		t.Fatalf("PreferenceProfile().Gender = %q, want unspecified", got)
	}
}

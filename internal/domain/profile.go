package domain

import "strings"

// Unknown is rendered in place of missing profile fields.
const Unknown = "unknown"

// Profile is the birth record collected by the onboarding form.
type Profile struct {
	Name         string `json:"name"`
	Gender       string `json:"gender"`
	DateOfBirth  string `json:"date_of_birth"`
	TimeOfBirth  string `json:"time_of_birth"`
	PlaceOfBirth string `json:"place_of_birth"`
	Challenge    string `json:"challenge,omitempty"`
}

// Complete reports whether the fields needed for a reading are present.
// Time of birth is optional.
func (p Profile) Complete() bool {
	return strings.TrimSpace(p.Name) != "" &&
		strings.TrimSpace(p.DateOfBirth) != "" &&
		strings.TrimSpace(p.PlaceOfBirth) != ""
}

// Field returns the trimmed value or Unknown.
func Field(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return Unknown
	}
	return v
}

// Summary renders the profile for a system prompt.
func (p Profile) Summary() string {
	var b strings.Builder
	b.WriteString("Name: " + Field(p.Name) + "\n")
	b.WriteString("Gender: " + Field(p.Gender) + "\n")
	b.WriteString("Date of birth: " + Field(p.DateOfBirth) + "\n")
	b.WriteString("Time of birth: " + Field(p.TimeOfBirth) + "\n")
	b.WriteString("Place of birth: " + Field(p.PlaceOfBirth))
	if c := strings.TrimSpace(p.Challenge); c != "" {
		b.WriteString("\nCurrent focus: " + c)
	}
	return b.String()
}

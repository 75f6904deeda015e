package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Gender is the self-declared gender of a participant.
type Gender string

// LookingFor is the gender a participant wants to be paired with.
type LookingFor string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"

	LookingForMale     LookingFor = "male"
	LookingForFemale   LookingFor = "female"
	LookingForEveryone LookingFor = "everyone"
)

// MaxProfileFieldLength is the number of characters kept from name and location.
const MaxProfileFieldLength = 50

// ErrInvalidProfile is returned (wrapped) for any profile validation failure.
var ErrInvalidProfile = errors.New("invalid profile")

// Profile is what a visitor tells us about themselves before matching.
// It lives only as long as the session and is copied onto the waiting
// entry and the presence record.
type Profile struct {
	Name       string     `json:"name"`
	Location   string     `json:"location"`
	Gender     Gender     `json:"gender"`
	LookingFor LookingFor `json:"looking_for"`
}

// Normalize trims and truncates the free-text fields, fills the form defaults
// and validates the result. The receiver is not modified.
func (p Profile) Normalize() (Profile, error) {
	p.Name = Truncate(strings.TrimSpace(p.Name), MaxProfileFieldLength)
	p.Location = Truncate(strings.TrimSpace(p.Location), MaxProfileFieldLength)

	if p.Gender == "" {
		p.Gender = GenderOther
	}
	if p.LookingFor == "" {
		p.LookingFor = LookingForEveryone
	}

	if p.Name == "" {
		return p, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if p.Location == "" {
		return p, fmt.Errorf("%w: location is required", ErrInvalidProfile)
	}
	if !p.Gender.Valid() {
		return p, fmt.Errorf("%w: unknown gender %q", ErrInvalidProfile, p.Gender)
	}
	if !p.LookingFor.Valid() {
		return p, fmt.Errorf("%w: unknown looking_for %q", ErrInvalidProfile, p.LookingFor)
	}
	return p, nil
}

// Accepts reports whether someone who wants l would accept a partner of gender g.
func (l LookingFor) Accepts(g Gender) bool {
	return l == LookingForEveryone || string(l) == string(g)
}

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

func (l LookingFor) Valid() bool {
	switch l {
	case LookingForMale, LookingForFemale, LookingForEveryone:
		return true
	}
	return false
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownPersonType is returned when a type tag is not one of the known tags
var ErrUnknownPersonType = errors.New("unknown person type")

// ErrUnknownPreference is returned for an unrecognized email preference
var ErrUnknownPreference = errors.New("unknown email preference")

// PersonType is the single type tag a person carries.
// Composite tags (STAFF_ALUMNI, STAFF_ADMIN) are distinct tags, not unions.
type PersonType string

const (
	PersonFellow      PersonType = "FELLOW"
	PersonAlumni      PersonType = "ALUMNI"
	PersonStaff       PersonType = "STAFF"
	PersonAdmin       PersonType = "ADMIN"
	PersonStaffAdmin  PersonType = "STAFF_ADMIN"
	PersonStaffAlumni PersonType = "STAFF_ALUMNI"
	PersonLeadership  PersonType = "LEADERSHIP"
	PersonGeneral     PersonType = "GENERAL"
)

// AllPersonTypes lists every known tag in display order
var AllPersonTypes = []PersonType{
	PersonFellow,
	PersonAlumni,
	PersonStaff,
	PersonAdmin,
	PersonStaffAdmin,
	PersonStaffAlumni,
	PersonLeadership,
	PersonGeneral,
}

// Valid reports whether t is a known tag
func (t PersonType) Valid() bool {
	for _, known := range AllPersonTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParsePersonType parses a tag case-insensitively
func ParsePersonType(s string) (PersonType, error) {
	t := PersonType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPersonType, s)
	}
	return t, nil
}

// ParsePersonTypes parses a list of tags. An empty list stays empty and means
// "no type restriction".
func ParsePersonTypes(in []string) ([]PersonType, error) {
	out := make([]PersonType, 0, len(in))
	for _, s := range in {
		t, err := ParsePersonType(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// EmailPreference selects which address field(s) of a person are read
type EmailPreference string

const (
	PreferPrimary   EmailPreference = "primary"
	PreferSecondary EmailPreference = "secondary"
	PreferBoth      EmailPreference = "both"
)

// ParseEmailPreference accepts both the internal names and the wire names
// used by listing screens (email1, email2, both). Empty defaults to primary.
func ParseEmailPreference(s string) (EmailPreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "primary", "email1":
		return PreferPrimary, nil
	case "secondary", "email2":
		return PreferSecondary, nil
	case "both":
		return PreferBoth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPreference, s)
	}
}

// Person is the slice of a member record the notification engine reads
type Person struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      PersonType `json:"type"`
	Email1    string     `json:"email1"`
	Email2    string     `json:"email2"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Admin is the authenticated administrator invoking the engine
type Admin struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

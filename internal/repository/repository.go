// Package repository is the SQL-backed store for people, listings,
// dispatch reports and composer drafts
package repository

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

func now() time.Time {
	return time.Now().UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

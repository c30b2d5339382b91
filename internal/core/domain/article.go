package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

type Article struct {
	Sku       int64     `json:"sku" db:"sku"`
	Name      string    `json:"name" db:"name"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Reserved  int       `json:"reserved" db:"reserved"`
	Version   int       `json:"version" db:"version"` // optimistic locking
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Available is the stock that can still be reserved.
func (a Article) Available() int {
	return a.Quantity - a.Reserved
}

// Valid reports whether 0 <= Reserved <= Quantity.
func (a Article) Valid() bool {
	return a.Reserved >= 0 && a.Reserved <= a.Quantity
}

// NameKey folds a name for case-insensitive uniqueness checks.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

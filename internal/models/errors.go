// internal/models/errors.go
package models

import "errors"

// Sentinel errors shared by the catalog, ledger, storage and advisor layers.
var (
	ErrCatalogLoad         = errors.New("catalog load failed")
	ErrCatalogFormat       = errors.New("catalog format error")
	ErrUnknownFood         = errors.New("unknown food")
	ErrEntryNotFound       = errors.New("entry not found")
	ErrPersistence         = errors.New("persistence failed")
	ErrAdvisoryUnavailable = errors.New("advisory service unavailable")
	ErrNothingToAdvise     = errors.New("no entries to advise on")

	ErrInvalidGrams    = errors.New("grams must be greater than zero")
	ErrInvalidMealSlot = errors.New("invalid meal slot")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidProfile  = errors.New("invalid profile")
)

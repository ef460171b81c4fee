package update

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch is returned when the request carries no items.
var ErrEmptyBatch = errors.New("Please provide valid data.")

// ErrSKUAttributeMissing means the Tradetrek SKU attribute is not configured
// in the catalog. This is a fatal configuration error, not a per-item one.
var ErrSKUAttributeMissing = errors.New("Tradetrek attribute is missing in the system.")

// BatchLimitError is returned when the request exceeds the configured
// maximum batch size.
type BatchLimitError struct {
	Limit int
}

func (e *BatchLimitError) Error() string {
	return fmt.Sprintf("You have requested to update more than allowed max limit. Max allowed limit is: %d", e.Limit)
}

package dto

// BatchUpdateResult reports the outcome of one batch call. Errors maps each
// failed Tradetrek SKU to the messages recorded for it, in processing order.
// An item absent from the map was updated in full.
type BatchUpdateResult struct {
	Errors map[string][]string `json:"errors,omitempty"`
}

func NewBatchUpdateResult() *BatchUpdateResult {
	return &BatchUpdateResult{Errors: map[string][]string{}}
}

func (r *BatchUpdateResult) AddError(sku, message string) {
	r.Errors[sku] = append(r.Errors[sku], message)
}

func (r *BatchUpdateResult) Success() bool {
	return len(r.Errors) == 0
}

package dto

// CustomerGroupPrice is one tier-price entry: the named customer group gets
// the given price at quantity 1. Entries with an empty name are skipped.
type CustomerGroupPrice struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ProductUpdateItem is one row of a bulk update request. The product is
// addressed by its external Tradetrek SKU; every other field is optional and
// each present field is applied independently.
//
// SupplierPrice follows the legacy contract: nil or a negative value means
// "not provided", zero is a legitimate free price and triggers the update.
type ProductUpdateItem struct {
	TradetrekSKU        string               `json:"tradetrek_sku" binding:"required"`
	Price               *float64             `json:"price"`
	Cost                *float64             `json:"cost"`
	CustomerGroupPrices []CustomerGroupPrice `json:"customer_group"`
	SupplierCode        string               `json:"supplier_no"`
	SupplierPrice       *float64             `json:"supplier_price"`
}

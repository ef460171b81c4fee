package model

import "time"

type Supplier struct {
	ID   int64  `db:"sup_id"`
	Code string `db:"sup_code"`
	Name string `db:"sup_name"`
}

// SupplierProductLink associates a product with a supplier and carries the
// supplier-specific cost. Links are created elsewhere; this service only
// updates price and timestamp on existing rows.
type SupplierProductLink struct {
	ID         int64     `db:"sp_id"`
	SupplierID int64     `db:"sp_supplier_id"`
	ProductID  int64     `db:"sp_product_id"`
	Price      float64   `db:"sp_price"`
	UpdatedAt  time.Time `db:"sp_updated_at"`
}

package update

import (
	"context"
	"time"

	"github.com/streamcommerce/product-update-service/internal/model"
)

// CatalogRepository covers the attribute-metadata catalog and the EAV value
// tables the updater reads and writes.
type CatalogRepository interface {
	// AttributeIDByCode resolves a product attribute code to its id.
	// Returns 0 when the attribute is not configured.
	AttributeIDByCode(ctx context.Context, code string) (int64, error)

	// ProductIDByAttributeValue finds the product whose varchar attribute
	// holds exactly value in the given store scope. Returns 0 when no
	// product matches.
	ProductIDByAttributeValue(ctx context.Context, attributeID int64, value string, storeID int64) (int64, error)

	// UpdateDecimalAttribute writes a decimal attribute value for one
	// product in one store scope, inserting or overwriting the row.
	UpdateDecimalAttribute(ctx context.Context, productID int64, code string, value float64, storeID int64) error
}

// TierPriceRepository upserts customer-group tier prices.
type TierPriceRepository interface {
	// Upsert writes the price for (product, group) at quantity 1 on the
	// default website, overwriting any existing row for the same key.
	Upsert(ctx context.Context, productID, customerGroupID int64, price float64) error
}

type CustomerGroupRepository interface {
	// IDByName resolves a customer group by exact name. Returns 0 when the
	// group does not exist.
	IDByName(ctx context.Context, name string) (int64, error)
}

type SupplierRepository interface {
	// IDByCode resolves a supplier by exact code. Returns 0 when the
	// supplier does not exist.
	IDByCode(ctx context.Context, code string) (int64, error)

	// FindLink loads the (product, supplier) association, or nil when the
	// product is not linked to the supplier.
	FindLink(ctx context.Context, productID, supplierID int64) (*model.SupplierProductLink, error)

	// UpdateLinkCost sets price and timestamp on an existing link.
	UpdateLinkCost(ctx context.Context, productID, supplierID int64, price float64, at time.Time) error
}

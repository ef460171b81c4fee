package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/streamcommerce/product-update-service/internal/model"
)

// Attribute metadata is looked up against this entity type only.
const entityTypeProduct = "catalog_product"

// Tables applies the host deployment's table prefix, if any.
type Tables struct {
	prefix string
}

func NewTables(prefix string) Tables {
	return Tables{prefix: prefix}
}

func (t Tables) Name(base string) string {
	return t.prefix + base
}

type PGRepository struct {
	DB     *sqlx.DB
	tables Tables

	// attribute ids are immutable metadata, cached for the process lifetime
	attrMu  sync.RWMutex
	attrIDs map[string]int64
}

func NewPGRepository(db *sqlx.DB, tables Tables) *PGRepository {
	return &PGRepository{
		DB:      db,
		tables:  tables,
		attrIDs: map[string]int64{},
	}
}

func (r *PGRepository) AttributeIDByCode(ctx context.Context, code string) (int64, error) {
	r.attrMu.RLock()
	id, ok := r.attrIDs[code]
	r.attrMu.RUnlock()
	if ok {
		return id, nil
	}

	query := fmt.Sprintf(
		`SELECT attribute_id FROM %s WHERE entity_type = $1 AND attribute_code = $2`,
		r.tables.Name("eav_attribute"),
	)
	err := r.DB.GetContext(ctx, &id, query, entityTypeProduct, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}

	r.attrMu.Lock()
	r.attrIDs[code] = id
	r.attrMu.Unlock()
	return id, nil
}

func (r *PGRepository) ProductIDByAttributeValue(ctx context.Context, attributeID int64, value string, storeID int64) (int64, error) {
	var productID int64
	query := fmt.Sprintf(
		`SELECT entity_id FROM %s WHERE attribute_id = $1 AND value = $2 AND store_id = $3 LIMIT 1`,
		r.tables.Name("catalog_product_entity_varchar"),
	)
	err := r.DB.GetContext(ctx, &productID, query, attributeID, value, storeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return productID, nil
}

func (r *PGRepository) UpdateDecimalAttribute(ctx context.Context, productID int64, code string, value float64, storeID int64) error {
	attributeID, err := r.AttributeIDByCode(ctx, code)
	if err != nil {
		return err
	}
	if attributeID == 0 {
		return fmt.Errorf("attribute %q is not configured", code)
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (entity_id, attribute_id, store_id, value)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (entity_id, attribute_id, store_id)
        DO UPDATE SET value = EXCLUDED.value
    `, r.tables.Name("catalog_product_entity_decimal"))

	_, err = r.DB.ExecContext(ctx, query, productID, attributeID, storeID, value)
	return err
}

func (r *PGRepository) Upsert(ctx context.Context, productID, customerGroupID int64, price float64) error {
	// Single atomic upsert on the full tier key; no read-before-write.
	query := fmt.Sprintf(`
        INSERT INTO %s (entity_id, all_groups, customer_group_id, qty, value, website_id)
        VALUES ($1, 0, $2, 1, $3, 0)
        ON CONFLICT (entity_id, all_groups, customer_group_id, qty, website_id)
        DO UPDATE SET value = EXCLUDED.value
    `, r.tables.Name("catalog_product_entity_tier_price"))

	_, err := r.DB.ExecContext(ctx, query, productID, customerGroupID, price)
	return err
}

func (r *PGRepository) IDByName(ctx context.Context, name string) (int64, error) {
	var group model.CustomerGroup
	query := fmt.Sprintf(
		`SELECT customer_group_id, customer_group_code FROM %s WHERE customer_group_code = $1`,
		r.tables.Name("customer_group"),
	)
	err := r.DB.GetContext(ctx, &group, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return group.ID, nil
}

func (r *PGRepository) IDByCode(ctx context.Context, code string) (int64, error) {
	var supplier model.Supplier
	query := fmt.Sprintf(
		`SELECT sup_id, sup_code, sup_name FROM %s WHERE sup_code = $1`,
		r.tables.Name("bms_supplier"),
	)
	err := r.DB.GetContext(ctx, &supplier, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return supplier.ID, nil
}

func (r *PGRepository) FindLink(ctx context.Context, productID, supplierID int64) (*model.SupplierProductLink, error) {
	var link model.SupplierProductLink
	query := fmt.Sprintf(
		`SELECT * FROM %s WHERE sp_product_id = $1 AND sp_supplier_id = $2`,
		r.tables.Name("bms_supplier_product"),
	)
	err := r.DB.GetContext(ctx, &link, query, productID, supplierID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *PGRepository) UpdateLinkCost(ctx context.Context, productID, supplierID int64, price float64, at time.Time) error {
	query := fmt.Sprintf(
		`UPDATE %s SET sp_price = $1, sp_updated_at = $2 WHERE sp_product_id = $3 AND sp_supplier_id = $4`,
		r.tables.Name("bms_supplier_product"),
	)
	res, err := r.DB.ExecContext(ctx, query, price, at, productID, supplierID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("supplier %d is not associated with product %d", supplierID, productID)
	}
	return nil
}

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/streamcommerce/product-update-service/config"
	"github.com/streamcommerce/product-update-service/internal/update"
	"github.com/streamcommerce/product-update-service/internal/update/dto"
	"github.com/streamcommerce/product-update-service/pkg/logger"
)

// Attribute codes for the decimal writes; the SKU attribute code comes from
// configuration.
const (
	attrPrice = "price"
	attrCost  = "cost"
)

// All writes target the default store scope, like the legacy endpoint.
const defaultStoreID = int64(0)

// EventProducer publishes an event after an item had at least one successful
// sub-update. Emission is best-effort and never feeds the error report.
type EventProducer interface {
	PublishJSON(ctx context.Context, key string, event interface{}) error
}

// ProductUpdatedEvent is the payload published per updated item.
type ProductUpdatedEvent struct {
	EventType    string    `json:"event_type"`
	ProductID    int64     `json:"product_id"`
	TradetrekSKU string    `json:"tradetrek_sku"`
	Fields       []string  `json:"fields"`
	Timestamp    time.Time `json:"timestamp"`
}

type batchUpdateUseCase struct {
	catalog   update.CatalogRepository
	tierPrice update.TierPriceRepository
	groups    update.CustomerGroupRepository
	suppliers update.SupplierRepository
	producer  EventProducer
	logger    logger.ZapLogger
	cfg       config.UpdateConfig

	// the SKU attribute id is resolved once and reused for the process
	// lifetime; a missing attribute is a fatal configuration error
	skuAttrMu sync.Mutex
	skuAttrID int64
}

func NewBatchUpdateUseCase(
	catalog update.CatalogRepository,
	tierPrice update.TierPriceRepository,
	groups update.CustomerGroupRepository,
	suppliers update.SupplierRepository,
	producer EventProducer,
	log logger.ZapLogger,
	cfg config.UpdateConfig,
) update.UseCase {
	return &batchUpdateUseCase{
		catalog:   catalog,
		tierPrice: tierPrice,
		groups:    groups,
		suppliers: suppliers,
		producer:  producer,
		logger:    log,
		cfg:       cfg,
	}
}

func (uc *batchUpdateUseCase) ValidateBatch(items []dto.ProductUpdateItem) error {
	if len(items) == 0 {
		return update.ErrEmptyBatch
	}
	if len(items) > uc.cfg.MaxBatchSize {
		return &update.BatchLimitError{Limit: uc.cfg.MaxBatchSize}
	}
	return nil
}

// skuAttributeID caches the resolved attribute id. Only a successful
// resolution is latched; lookup failures surface to the caller and are
// retried on the next batch, and a not-configured attribute is re-checked
// so fixing the catalog does not require a restart.
func (uc *batchUpdateUseCase) skuAttributeID(ctx context.Context) (int64, error) {
	uc.skuAttrMu.Lock()
	defer uc.skuAttrMu.Unlock()

	if uc.skuAttrID != 0 {
		return uc.skuAttrID, nil
	}

	id, err := uc.catalog.AttributeIDByCode(ctx, uc.cfg.SKUAttributeCode)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, update.ErrSKUAttributeMissing
	}

	uc.skuAttrID = id
	return id, nil
}

func (uc *batchUpdateUseCase) BatchUpdate(ctx context.Context, items []dto.ProductUpdateItem) (*dto.BatchUpdateResult, error) {
	if err := uc.ValidateBatch(items); err != nil {
		return nil, err
	}

	skuAttrID, err := uc.skuAttributeID(ctx)
	if err != nil {
		return nil, err
	}

	// Resolver caches live for exactly one batch call so concurrent
	// requests never observe each other's lookups.
	groupIDs := map[string]int64{}
	supplierIDs := map[string]int64{}

	result := dto.NewBatchUpdateResult()

	for _, item := range items {
		sku := item.TradetrekSKU

		productID, err := uc.catalog.ProductIDByAttributeValue(ctx, skuAttrID, sku, defaultStoreID)
		if err != nil {
			// storage failure, not a missing SKU
			result.AddError(sku, "Product not updated.")
			uc.logger.Error("sku resolution failed", zap.String("sku", sku), zap.Error(err))
			continue
		}
		if productID == 0 {
			result.AddError(sku, fmt.Sprintf("Tradetrak SKU %s not found in the system.", sku))
			continue
		}

		updated := []string{}

		if item.Price != nil {
			if err := uc.catalog.UpdateDecimalAttribute(ctx, productID, attrPrice, *item.Price, defaultStoreID); err != nil {
				result.AddError(sku, "Product price not updated.")
				uc.logger.Error("price update failed", zap.String("sku", sku), zap.Error(err))
			} else {
				updated = append(updated, attrPrice)
				uc.logger.Info("product price updated", zap.String("sku", sku), zap.Float64("price", *item.Price))
			}
		}

		if item.Cost != nil {
			if err := uc.catalog.UpdateDecimalAttribute(ctx, productID, attrCost, *item.Cost, defaultStoreID); err != nil {
				result.AddError(sku, "Product cost not updated.")
				uc.logger.Error("cost update failed", zap.String("sku", sku), zap.Error(err))
			} else {
				updated = append(updated, attrCost)
				uc.logger.Info("product cost updated", zap.String("sku", sku), zap.Float64("cost", *item.Cost))
			}
		}

		if uc.updateTierPrices(ctx, productID, sku, item.CustomerGroupPrices, groupIDs, result) {
			updated = append(updated, "tier_price")
		}

		if item.SupplierCode != "" && item.SupplierPrice != nil && *item.SupplierPrice >= 0 {
			if err := uc.updateSupplierCost(ctx, productID, item.SupplierCode, *item.SupplierPrice, supplierIDs); err != nil {
				result.AddError(sku, fmt.Sprintf("Supplier cost not updated for supplier code %q.", item.SupplierCode))
				uc.logger.Error("supplier cost update failed",
					zap.String("sku", sku),
					zap.String("supplier_code", item.SupplierCode),
					zap.Error(err),
				)
			} else {
				updated = append(updated, "supplier_cost")
				uc.logger.Info("supplier cost updated",
					zap.String("sku", sku),
					zap.String("supplier_code", item.SupplierCode),
					zap.Float64("price", *item.SupplierPrice),
				)
			}
		}

		if len(updated) > 0 {
			uc.publishUpdated(ctx, productID, sku, updated)
		}
	}

	return result, nil
}

// updateTierPrices applies each tier entry independently and reports whether
// at least one row was written.
func (uc *batchUpdateUseCase) updateTierPrices(ctx context.Context, productID int64, sku string, entries []dto.CustomerGroupPrice, groupIDs map[string]int64, result *dto.BatchUpdateResult) bool {
	any := false
	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}

		groupID, ok := groupIDs[entry.Name]
		if !ok {
			id, err := uc.groups.IDByName(ctx, entry.Name)
			if err != nil {
				result.AddError(sku, fmt.Sprintf("Customer group price not updated for %q.", entry.Name))
				uc.logger.Error("customer group resolution failed", zap.String("sku", sku), zap.String("group", entry.Name), zap.Error(err))
				continue
			}
			groupIDs[entry.Name] = id
			groupID = id
		}
		if groupID == 0 {
			result.AddError(sku, fmt.Sprintf("Customer group price not updated for %q.", entry.Name))
			continue
		}

		if err := uc.tierPrice.Upsert(ctx, productID, groupID, entry.Price); err != nil {
			result.AddError(sku, fmt.Sprintf("Customer group price not updated for %q.", entry.Name))
			uc.logger.Error("tier price upsert failed", zap.String("sku", sku), zap.String("group", entry.Name), zap.Error(err))
			continue
		}

		any = true
		uc.logger.Info("tier price updated",
			zap.String("sku", sku),
			zap.String("group", entry.Name),
			zap.Float64("price", entry.Price),
		)
	}
	return any
}

func (uc *batchUpdateUseCase) updateSupplierCost(ctx context.Context, productID int64, supplierCode string, price float64, supplierIDs map[string]int64) error {
	supplierID, ok := supplierIDs[supplierCode]
	if !ok {
		id, err := uc.suppliers.IDByCode(ctx, supplierCode)
		if err != nil {
			return err
		}
		supplierIDs[supplierCode] = id
		supplierID = id
	}
	if supplierID == 0 {
		return fmt.Errorf("supplier with code %q doesn't exist", supplierCode)
	}

	link, err := uc.suppliers.FindLink(ctx, productID, supplierID)
	if err != nil {
		return err
	}
	if link == nil {
		return fmt.Errorf("supplier with code %q is not associated with product %d", supplierCode, productID)
	}

	return uc.suppliers.UpdateLinkCost(ctx, productID, supplierID, price, time.Now())
}

func (uc *batchUpdateUseCase) publishUpdated(ctx context.Context, productID int64, sku string, fields []string) {
	if uc.producer == nil {
		return
	}
	event := ProductUpdatedEvent{
		EventType:    "product.bulk_updated",
		ProductID:    productID,
		TradetrekSKU: sku,
		Fields:       fields,
		Timestamp:    time.Now(),
	}
	if err := uc.producer.PublishJSON(ctx, sku, event); err != nil {
		uc.logger.Error("failed to publish product update event", zap.String("sku", sku), zap.Error(err))
	}
}

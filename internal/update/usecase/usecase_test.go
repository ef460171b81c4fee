package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamcommerce/product-update-service/config"
	"github.com/streamcommerce/product-update-service/internal/model"
	"github.com/streamcommerce/product-update-service/internal/update"
	"github.com/streamcommerce/product-update-service/internal/update/dto"
	"github.com/streamcommerce/product-update-service/pkg/logger"
)

type decimalWrite struct {
	productID int64
	code      string
	value     float64
	storeID   int64
}

type fakeCatalogRepo struct {
	skuAttrID   int64
	attrErrs    []error // popped one per AttributeIDByCode call
	attrCalls   int
	products    map[string]int64
	lookupErr   error
	lookupCalls int
	writes      []decimalWrite
	failCodes   map[string]bool
}

func (f *fakeCatalogRepo) AttributeIDByCode(_ context.Context, code string) (int64, error) {
	f.attrCalls++
	if len(f.attrErrs) > 0 {
		err := f.attrErrs[0]
		f.attrErrs = f.attrErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	return f.skuAttrID, nil
}

func (f *fakeCatalogRepo) ProductIDByAttributeValue(_ context.Context, _ int64, value string, _ int64) (int64, error) {
	f.lookupCalls++
	if f.lookupErr != nil {
		return 0, f.lookupErr
	}
	return f.products[value], nil
}

func (f *fakeCatalogRepo) UpdateDecimalAttribute(_ context.Context, productID int64, code string, value float64, storeID int64) error {
	if f.failCodes[code] {
		return errors.New("write failed")
	}
	f.writes = append(f.writes, decimalWrite{productID, code, value, storeID})
	return nil
}

type tierUpsert struct {
	productID int64
	groupID   int64
	price     float64
}

type fakeTierPriceRepo struct {
	upserts []tierUpsert
	err     error
}

func (f *fakeTierPriceRepo) Upsert(_ context.Context, productID, customerGroupID int64, price float64) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, tierUpsert{productID, customerGroupID, price})
	return nil
}

type fakeGroupRepo struct {
	ids   map[string]int64
	calls int
	err   error
}

func (f *fakeGroupRepo) IDByName(_ context.Context, name string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.ids[name], nil
}

type linkUpdate struct {
	productID  int64
	supplierID int64
	price      float64
}

type fakeSupplierRepo struct {
	ids         map[string]int64
	codeCalls   int
	links       map[string]bool
	linkUpdates []linkUpdate
	updateErr   error
}

func linkKey(productID, supplierID int64) string {
	return fmt.Sprintf("%d:%d", productID, supplierID)
}

func (f *fakeSupplierRepo) IDByCode(_ context.Context, code string) (int64, error) {
	f.codeCalls++
	return f.ids[code], nil
}

func (f *fakeSupplierRepo) FindLink(_ context.Context, productID, supplierID int64) (*model.SupplierProductLink, error) {
	if !f.links[linkKey(productID, supplierID)] {
		return nil, nil
	}
	return &model.SupplierProductLink{ProductID: productID, SupplierID: supplierID}, nil
}

func (f *fakeSupplierRepo) UpdateLinkCost(_ context.Context, productID, supplierID int64, price float64, _ time.Time) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.linkUpdates = append(f.linkUpdates, linkUpdate{productID, supplierID, price})
	return nil
}

type fakeProducer struct {
	events []ProductUpdatedEvent
}

func (f *fakeProducer) PublishJSON(_ context.Context, _ string, event interface{}) error {
	if ev, ok := event.(ProductUpdatedEvent); ok {
		f.events = append(f.events, ev)
	}
	return nil
}

type fixture struct {
	catalog   *fakeCatalogRepo
	tierPrice *fakeTierPriceRepo
	groups    *fakeGroupRepo
	suppliers *fakeSupplierRepo
	producer  *fakeProducer
	uc        update.UseCase
}

func newFixture() *fixture {
	f := &fixture{
		catalog: &fakeCatalogRepo{
			skuAttrID: 99,
			products:  map[string]int64{"A1": 42},
			failCodes: map[string]bool{},
		},
		tierPrice: &fakeTierPriceRepo{},
		groups:    &fakeGroupRepo{ids: map[string]int64{"Wholesale": 7}},
		suppliers: &fakeSupplierRepo{
			ids:   map[string]int64{"SUP1": 5},
			links: map[string]bool{linkKey(42, 5): true},
		},
		producer: &fakeProducer{},
	}
	f.uc = NewBatchUpdateUseCase(
		f.catalog, f.tierPrice, f.groups, f.suppliers, f.producer,
		logger.NewNop(),
		config.UpdateConfig{MaxBatchSize: 100, SKUAttributeCode: "tradetrek_sku"},
	)
	return f
}

func floatPtr(v float64) *float64 { return &v }

func TestBatchUpdate_PriceOnly(t *testing.T) {
	f := newFixture()

	result, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", Price: floatPtr(9.99)},
	})

	require.NoError(t, err)
	assert.True(t, result.Success())
	require.Len(t, f.catalog.writes, 1)
	assert.Equal(t, decimalWrite{42, "price", 9.99, 0}, f.catalog.writes[0])
}

func TestBatchUpdate_UnknownSKUSkipsItem(t *testing.T) {
	f := newFixture()

	result, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "ZZZ", Cost: floatPtr(5)},
	})

	require.NoError(t, err)
	assert.False(t, result.Success())
	require.Contains(t, result.Errors, "ZZZ")
	assert.Equal(t, []string{"Tradetrak SKU ZZZ not found in the system."}, result.Errors["ZZZ"])
	assert.Empty(t, f.catalog.writes, "no writes should be attempted for an unresolved SKU")
}

func TestBatchUpdate_PriceFailureDoesNotBlockCost(t *testing.T) {
	f := newFixture()
	f.catalog.failCodes["price"] = true

	result, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", Price: floatPtr(9.99), Cost: floatPtr(4.5)},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Product price not updated."}, result.Errors["A1"])
	require.Len(t, f.catalog.writes, 1)
	assert.Equal(t, "cost", f.catalog.writes[0].code)
}

func TestBatchUpdate_TierPrice(t *testing.T) {
	f := newFixture()

	result, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", CustomerGroupPrices: []dto.CustomerGroupPrice{{Name: "Wholesale", Price: 8}}},
	})

	require.NoError(t, err)
	assert.True(t, result.Success())
	require.Len(t, f.tierPrice.upserts, 1)
	assert.Equal(t, tierUpsert{42, 7, 8}, f.tierPrice.upserts[0])
}

func TestBatchUpdate_UnknownCustomerGroup(t *testing.T) {
	f := newFixture()

	result, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", CustomerGroupPrices: []dto.CustomerGroupPrice{{Name: "Retail", Price: 8}}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{`Customer group price not updated for "Retail".`}, result.Errors["A1"])
	assert.Empty(t, f.tierPrice.upserts)
}

func TestBatchUpdate_EmptyGroupNameSkipped(t *testing.T) {
	f := newFixture()

	result, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", CustomerGroupPrices: []dto.CustomerGroupPrice{{Name: "", Price: 8}}},
	})

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Zero(t, f.groups.calls)
}

func TestBatchUpdate_GroupResolutionMemoizedPerBatch(t *testing.T) {
	f := newFixture()
	f.catalog.products["A2"] = 43

	_, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", CustomerGroupPrices: []dto.CustomerGroupPrice{{Name: "Wholesale", Price: 8}}},
		{TradetrekSKU: "A2", CustomerGroupPrices: []dto.CustomerGroupPrice{{Name: "Wholesale", Price: 9}}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, f.groups.calls)
	assert.Len(t, f.tierPrice.upserts, 2)
}

func TestBatchUpdate_SupplierCostZeroIsValid(t *testing.T) {
	f := newFixture()

	result, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", SupplierCode: "SUP1", SupplierPrice: floatPtr(0)},
	})

	require.NoError(t, err)
	assert.True(t, result.Success())
	require.Len(t, f.suppliers.linkUpdates, 1)
	assert.Equal(t, linkUpdate{42, 5, 0}, f.suppliers.linkUpdates[0])
}

func TestBatchUpdate_NegativeSupplierPriceSkipped(t *testing.T) {
	f := newFixture()

	result, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", SupplierCode: "SUP1", SupplierPrice: floatPtr(-1)},
	})

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Zero(t, f.suppliers.codeCalls)
	assert.Empty(t, f.suppliers.linkUpdates)
}

func TestBatchUpdate_MissingSupplierLink(t *testing.T) {
	f := newFixture()
	f.suppliers.links = map[string]bool{}

	result, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", SupplierCode: "SUP1", SupplierPrice: floatPtr(3)},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{`Supplier cost not updated for supplier code "SUP1".`}, result.Errors["A1"])
	assert.Empty(t, f.suppliers.linkUpdates, "a missing link must never be created")
}

func TestBatchUpdate_SupplierResolutionMemoizedPerBatch(t *testing.T) {
	f := newFixture()
	f.catalog.products["A2"] = 43
	f.suppliers.links[linkKey(43, 5)] = true

	_, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", SupplierCode: "SUP1", SupplierPrice: floatPtr(1)},
		{TradetrekSKU: "A2", SupplierCode: "SUP1", SupplierPrice: floatPtr(2)},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, f.suppliers.codeCalls)
	assert.Len(t, f.suppliers.linkUpdates, 2)
}

func TestBatchUpdate_EmptyBatchRejectedBeforeStorage(t *testing.T) {
	f := newFixture()

	_, err := f.uc.BatchUpdate(context.Background(), nil)

	require.ErrorIs(t, err, update.ErrEmptyBatch)
	assert.Zero(t, f.catalog.lookupCalls)
}

func TestBatchUpdate_OversizedBatchRejectedBeforeStorage(t *testing.T) {
	f := newFixture()
	f.uc = NewBatchUpdateUseCase(
		f.catalog, f.tierPrice, f.groups, f.suppliers, f.producer,
		logger.NewNop(),
		config.UpdateConfig{MaxBatchSize: 2, SKUAttributeCode: "tradetrek_sku"},
	)

	items := []dto.ProductUpdateItem{
		{TradetrekSKU: "A1"}, {TradetrekSKU: "A1"}, {TradetrekSKU: "A1"},
	}
	_, err := f.uc.BatchUpdate(context.Background(), items)

	var limitErr *update.BatchLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 2, limitErr.Limit)
	assert.Zero(t, f.catalog.lookupCalls)
}

func TestBatchUpdate_MissingSKUAttributeIsFatal(t *testing.T) {
	f := newFixture()
	f.catalog.skuAttrID = 0

	_, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", Price: floatPtr(1)},
	})

	require.ErrorIs(t, err, update.ErrSKUAttributeMissing)
}

func TestBatchUpdate_AttributeResolutionRetriedAfterTransientError(t *testing.T) {
	f := newFixture()
	f.catalog.attrErrs = []error{errors.New("connection refused")}

	items := []dto.ProductUpdateItem{{TradetrekSKU: "A1", Price: floatPtr(9.99)}}

	_, err := f.uc.BatchUpdate(context.Background(), items)
	require.Error(t, err)
	require.NotErrorIs(t, err, update.ErrSKUAttributeMissing)

	result, err := f.uc.BatchUpdate(context.Background(), items)
	require.NoError(t, err, "second call should succeed once the DB is back")
	assert.True(t, result.Success())
	assert.Equal(t, 2, f.catalog.attrCalls)
}

func TestBatchUpdate_AttributeIDCachedAfterSuccess(t *testing.T) {
	f := newFixture()

	items := []dto.ProductUpdateItem{{TradetrekSKU: "A1", Price: floatPtr(9.99)}}
	_, err := f.uc.BatchUpdate(context.Background(), items)
	require.NoError(t, err)
	_, err = f.uc.BatchUpdate(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 1, f.catalog.attrCalls)
}

func TestBatchUpdate_ResolutionErrorIsNotReportedAsUnknownSKU(t *testing.T) {
	f := newFixture()
	f.catalog.lookupErr = errors.New("connection reset")

	result, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", Price: floatPtr(9.99)},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Product not updated."}, result.Errors["A1"])
	assert.Empty(t, f.catalog.writes)
}

func TestBatchUpdate_PublishesEventForUpdatedItem(t *testing.T) {
	f := newFixture()

	_, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", Price: floatPtr(9.99), Cost: floatPtr(4)},
	})

	require.NoError(t, err)
	require.Len(t, f.producer.events, 1)
	assert.Equal(t, "product.bulk_updated", f.producer.events[0].EventType)
	assert.Equal(t, int64(42), f.producer.events[0].ProductID)
	assert.Equal(t, []string{"price", "cost"}, f.producer.events[0].Fields)
}

func TestBatchUpdate_NoEventWhenNothingUpdated(t *testing.T) {
	f := newFixture()
	f.catalog.failCodes["price"] = true

	_, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", Price: floatPtr(9.99)},
	})

	require.NoError(t, err)
	assert.Empty(t, f.producer.events)
}

func TestBatchUpdate_MixedBatchCollectsPerSKU(t *testing.T) {
	f := newFixture()

	result, err := f.uc.BatchUpdate(context.Background(), []dto.ProductUpdateItem{
		{TradetrekSKU: "A1", Price: floatPtr(9.99)},
		{TradetrekSKU: "ZZZ", Cost: floatPtr(5)},
	})

	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.NotContains(t, result.Errors, "A1")
	assert.Contains(t, result.Errors, "ZZZ")
}

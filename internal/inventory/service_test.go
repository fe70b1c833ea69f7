package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/harborline/supplychain-backend/pkg/db"
	pkgerrors "github.com/harborline/supplychain-backend/pkg/errors"
	"github.com/harborline/supplychain-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := openTestDB(t)
	svc, err := NewService(db.NewFromConn(conn), NewRepository(conn), nil, nil, nil)
	require.NoError(t, err)
	return svc, conn
}

func TestAddProductValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Add(context.Background(), AddProductInput{Name: "Widget"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Add(context.Background(), AddProductInput{
		SKU:      "WID-001",
		Name:     "Widget",
		Category: "components",
		Quantity: -1,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestAddProductUppercasesSKU(t *testing.T) {
	svc, _ := newTestService(t)

	product, err := svc.Add(context.Background(), AddProductInput{
		SKU:      "wid-001",
		Name:     "Widget",
		Category: "components",
		Quantity: 5,
	})
	require.NoError(t, err)
	require.Equal(t, "WID-001", product.SKU)

	_, err = svc.Add(context.Background(), AddProductInput{
		SKU:      "WID-001",
		Name:     "Duplicate",
		Category: "components",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestGetBySKUNormalizesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Add(ctx, AddProductInput{
		SKU:      "WID-002",
		Name:     "Widget",
		Category: "components",
	})
	require.NoError(t, err)

	found, err := svc.GetBySKU(ctx, "  wid-002 ")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = svc.GetBySKU(ctx, "missing-sku")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestApplyDeltaInsufficientStockLeavesQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.Add(ctx, AddProductInput{
		SKU:      "WID-003",
		Name:     "Widget",
		Category: "components",
		Quantity: 3,
	})
	require.NoError(t, err)

	_, err = svc.ApplyDelta(ctx, ApplyDeltaInput{
		ProductID: product.ID,
		Delta:     -10,
		Reason:    "order allocation",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))

	typed := pkgerrors.As(err)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, 3, details["available"])
	require.Equal(t, 10, details["requested"])

	reloaded, err := svc.Get(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 3, reloaded.Quantity)

	moves, err := svc.Movements(ctx, product.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, moves, 1, "only the initial stock movement should exist")
}

func TestApplyDeltaRecordsMovement(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.Add(ctx, AddProductInput{
		SKU:      "WID-004",
		Name:     "Widget",
		Category: "components",
		Quantity: 5,
	})
	require.NoError(t, err)

	result, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
		ProductID: product.ID,
		Delta:     -2,
		Reason:    "order allocation",
	})
	require.NoError(t, err)
	require.Equal(t, 5, result.PreviousQuantity)
	require.Equal(t, 3, result.NewQuantity)

	moves, err := svc.Movements(ctx, product.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, moves, 2)
}

func TestApplyDeltaUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ApplyDelta(context.Background(), ApplyDeltaInput{
		ProductID: uuid.New(),
		Delta:     1,
		Reason:    "restock",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestApplyDeltaZeroRefused(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ApplyDelta(context.Background(), ApplyDeltaInput{
		ProductID: uuid.New(),
		Delta:     0,
		Reason:    "noop",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestConcurrentOverdrawSingleWinner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.Add(ctx, AddProductInput{
		SKU:      "WID-005",
		Name:     "Widget",
		Category: "components",
		Quantity: 1,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = svc.ApplyDelta(ctx, ApplyDeltaInput{
				ProductID: product.ID,
				Delta:     -1,
				Reason:    "order allocation",
			})
		}(i)
	}
	wg.Wait()

	succeeded, refused := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, refused)

	reloaded, err := svc.Get(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 0, reloaded.Quantity)
}

func TestStatusEmptyLedger(t *testing.T) {
	svc, _ := newTestService(t)

	report, err := svc.Status(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 0, report.TotalProducts)
	require.True(t, report.TotalValue.IsZero())
	require.Equal(t, 100, report.HealthScore)
	require.Empty(t, report.LowStock)
	require.Empty(t, report.OutOfStock)
}

func TestStatusComputesHealthScore(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inputs := []AddProductInput{
		{SKU: "S-1", Name: "One", Category: "a", Quantity: 20, MinLevel: 5, Price: decimal.NewFromInt(2)},
		{SKU: "S-2", Name: "Two", Category: "a", Quantity: 20, MinLevel: 5, Price: decimal.NewFromInt(1)},
		{SKU: "S-3", Name: "Three", Category: "a", Quantity: 20, MinLevel: 5},
		{SKU: "S-4", Name: "Short", Category: "a", Quantity: 0, MinLevel: 5},
	}
	for _, input := range inputs {
		_, err := svc.Add(ctx, input)
		require.NoError(t, err)
	}

	report, err := svc.Status(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, report.TotalProducts)
	require.EqualValues(t, 60, report.TotalQuantity)
	require.True(t, report.TotalValue.Equal(decimal.NewFromInt(60)), "got %s", report.TotalValue)
	require.Len(t, report.LowStock, 1)
	require.Len(t, report.OutOfStock, 1)
	require.Equal(t, 75, report.HealthScore)
}

func TestDeleteMissingProduct(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teamshop/stock-ledger/internal/domain"
)

const testActor int64 = 42

func newTestStockService() (StockService, *mockStockRepository) {
	store := newMockStockRepository()
	svc := NewStockService(store, newMockMovementRepository(store), 10, 50)
	return svc, store
}

func seedProduct(t *testing.T, svc StockService, sku string, stock int) *domain.Product {
	t.Helper()

	product, err := svc.CreateProduct(context.Background(), &domain.CreateProductRequest{
		Name:         "Widget " + sku,
		SKU:          sku,
		Price:        9.99,
		InitialStock: stock,
	}, testActor)
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	return product
}

func TestStockService_CreateProduct(t *testing.T) {
	svc, store := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-001", 20)

	if product.Stock != 20 {
		t.Errorf("Expected stock 20, got %d", product.Stock)
	}

	// 初始库存必须通过流水入账
	if len(store.movements) != 1 {
		t.Fatalf("Expected 1 movement, got %d", len(store.movements))
	}
	mv := store.movements[0]
	if mv.Source != domain.MovementSourcePurchase {
		t.Errorf("Expected source purchase, got %s", mv.Source)
	}
	if mv.Change != 20 || mv.PreviousStock != 0 || mv.NewStock != 20 {
		t.Errorf("Unexpected movement snapshots: %+v", mv)
	}

	// SKU冲突
	_, err := svc.CreateProduct(ctx, &domain.CreateProductRequest{
		Name: "Other", SKU: "SKU-001", Price: 1,
	}, testActor)
	if !errors.Is(err, domain.ErrSKUExists) {
		t.Errorf("Expected ErrSKUExists, got %v", err)
	}
}

func TestStockService_CreateProduct_Validation(t *testing.T) {
	svc, _ := newTestStockService()
	ctx := context.Background()

	testCases := []struct {
		name    string
		req     *domain.CreateProductRequest
		actor   int64
		wantErr error
	}{
		{"missing actor", &domain.CreateProductRequest{Name: "A", SKU: "S1", Price: 1}, 0, domain.ErrMissingActor},
		{"negative initial stock", &domain.CreateProductRequest{Name: "A", SKU: "S2", Price: 1, InitialStock: -1}, testActor, domain.ErrNegativeStock},
		{"missing name", &domain.CreateProductRequest{SKU: "S3", Price: 1}, testActor, domain.ErrInvalidQuantity},
		{"negative price", &domain.CreateProductRequest{Name: "A", SKU: "S4", Price: -1}, testActor, domain.ErrInvalidQuantity},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tc.req, tc.actor)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestStockService_DecreaseStock(t *testing.T) {
	svc, _ := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-010", 10)

	mv, err := svc.DecreaseStock(ctx, product.ID, &domain.DecreaseStockRequest{
		Quantity: 4,
		OrderID:  777,
	}, testActor)
	if err != nil {
		t.Fatalf("DecreaseStock failed: %v", err)
	}

	if mv.Change != -4 {
		t.Errorf("Expected change -4, got %d", mv.Change)
	}
	if mv.Source != domain.MovementSourceOrder {
		t.Errorf("Expected source order, got %s", mv.Source)
	}
	if mv.OrderID == nil || *mv.OrderID != 777 {
		t.Errorf("Expected order_id 777, got %v", mv.OrderID)
	}
	if mv.CreatedBy != testActor {
		t.Errorf("Expected created_by %d, got %d", testActor, mv.CreatedBy)
	}
	if !mv.IsConsistent() {
		t.Errorf("Movement snapshots inconsistent: %+v", mv)
	}

	stock, err := svc.GetStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}
	if stock != 6 {
		t.Errorf("Expected stock 6, got %d", stock)
	}
}

// 超量出库必须整体失败：库存不变，也不能留下流水
func TestStockService_DecreaseStock_Insufficient(t *testing.T) {
	svc, store := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-011", 3)
	movementsBefore := len(store.movements)

	_, err := svc.DecreaseStock(ctx, product.ID, &domain.DecreaseStockRequest{Quantity: 5}, testActor)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	stock, _ := svc.GetStock(ctx, product.ID)
	if stock != 3 {
		t.Errorf("Stock must be unchanged after failed decrease, got %d", stock)
	}
	if len(store.movements) != movementsBefore {
		t.Errorf("Failed decrease must not append a movement")
	}

	// 恰好清零是允许的
	mv, err := svc.DecreaseStock(ctx, product.ID, &domain.DecreaseStockRequest{Quantity: 3}, testActor)
	if err != nil {
		t.Fatalf("DecreaseStock to zero failed: %v", err)
	}
	if mv.NewStock != 0 {
		t.Errorf("Expected stock 0, got %d", mv.NewStock)
	}
}

func TestStockService_IncreaseAndReturn(t *testing.T) {
	svc, _ := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-012", 0)

	mv, err := svc.IncreaseStock(ctx, product.ID, &domain.IncreaseStockRequest{Quantity: 7}, testActor)
	if err != nil {
		t.Fatalf("IncreaseStock failed: %v", err)
	}
	if mv.Source != domain.MovementSourcePurchase || mv.Reason != "restock" {
		t.Errorf("Unexpected movement: source=%s reason=%q", mv.Source, mv.Reason)
	}

	mv, err = svc.ReturnStock(ctx, product.ID, &domain.ReturnStockRequest{Quantity: 2, OrderID: 55}, testActor)
	if err != nil {
		t.Fatalf("ReturnStock failed: %v", err)
	}
	if mv.Source != domain.MovementSourceReturn {
		t.Errorf("Expected source return, got %s", mv.Source)
	}
	if mv.NewStock != 9 {
		t.Errorf("Expected stock 9, got %d", mv.NewStock)
	}
}

func TestStockService_WriteOffStock(t *testing.T) {
	svc, _ := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-013", 5)

	mv, err := svc.WriteOffStock(ctx, product.ID, &domain.WriteOffStockRequest{
		Quantity: 2,
		Reason:   "water damage",
	}, testActor)
	if err != nil {
		t.Fatalf("WriteOffStock failed: %v", err)
	}
	if mv.Source != domain.MovementSourceWriteOff || mv.Change != -2 {
		t.Errorf("Unexpected movement: %+v", mv)
	}
	if mv.Reason != "water damage" {
		t.Errorf("Expected reason to be kept, got %q", mv.Reason)
	}

	_, err = svc.WriteOffStock(ctx, product.ID, &domain.WriteOffStockRequest{Quantity: 10}, testActor)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("Expected ErrInsufficientStock, got %v", err)
	}
}

func TestStockService_InvalidQuantity(t *testing.T) {
	svc, _ := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-014", 5)

	for _, quantity := range []int{0, -3} {
		if _, err := svc.IncreaseStock(ctx, product.ID, &domain.IncreaseStockRequest{Quantity: quantity}, testActor); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("IncreaseStock(%d): expected ErrInvalidQuantity, got %v", quantity, err)
		}
		if _, err := svc.DecreaseStock(ctx, product.ID, &domain.DecreaseStockRequest{Quantity: quantity}, testActor); !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("DecreaseStock(%d): expected ErrInvalidQuantity, got %v", quantity, err)
		}
	}

	if _, err := svc.DecreaseStock(ctx, product.ID, &domain.DecreaseStockRequest{Quantity: 1}, 0); !errors.Is(err, domain.ErrMissingActor) {
		t.Errorf("Expected ErrMissingActor, got %v", err)
	}
}

func TestStockService_SetStock(t *testing.T) {
	svc, store := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-020", 10)

	mv, err := svc.SetStock(ctx, product.ID, &domain.SetStockRequest{NewStock: 4, Reason: "stocktake"}, testActor)
	if err != nil {
		t.Fatalf("SetStock failed: %v", err)
	}
	if mv.Change != -6 || mv.PreviousStock != 10 || mv.NewStock != 4 {
		t.Errorf("Unexpected movement: %+v", mv)
	}
	if mv.Source != domain.MovementSourceAdjustment {
		t.Errorf("Expected source adjustment, got %s", mv.Source)
	}

	// 目标值与当前值相同时不产生流水
	movementsBefore := len(store.movements)
	mv, err = svc.SetStock(ctx, product.ID, &domain.SetStockRequest{NewStock: 4}, testActor)
	if err != nil {
		t.Fatalf("No-op SetStock failed: %v", err)
	}
	if mv.Change != 0 {
		t.Errorf("Expected zero change, got %d", mv.Change)
	}
	if len(store.movements) != movementsBefore {
		t.Errorf("No-op SetStock must not append a movement")
	}

	// 负数目标值
	if _, err := svc.SetStock(ctx, product.ID, &domain.SetStockRequest{NewStock: -1}, testActor); !errors.Is(err, domain.ErrNegativeStock) {
		t.Errorf("Expected ErrNegativeStock, got %v", err)
	}
}

// 调拨写入一出一入两条流水，净库存不变
func TestStockService_TransferStock(t *testing.T) {
	svc, store := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-030", 8)

	movements, err := svc.TransferStock(ctx, product.ID, &domain.TransferStockRequest{
		Quantity:     3,
		FromLocation: "warehouse-a",
		ToLocation:   "warehouse-b",
	}, testActor)
	if err != nil {
		t.Fatalf("TransferStock failed: %v", err)
	}

	if len(movements) != 2 {
		t.Fatalf("Expected 2 movements, got %d", len(movements))
	}
	out, in := movements[0], movements[1]
	if out.Change != -3 || in.Change != 3 {
		t.Errorf("Expected changes -3/+3, got %d/%d", out.Change, in.Change)
	}
	if out.Source != domain.MovementSourceTransfer || in.Source != domain.MovementSourceTransfer {
		t.Errorf("Both movements must have source transfer")
	}
	if out.Notes == nil || *out.Notes != "warehouse-a -> warehouse-b" {
		t.Errorf("Unexpected notes: %v", out.Notes)
	}
	if !out.IsConsistent() || !in.IsConsistent() {
		t.Errorf("Transfer movement snapshots inconsistent")
	}

	stock, _ := svc.GetStock(ctx, product.ID)
	if stock != 8 {
		t.Errorf("Transfer must not change net stock, got %d", stock)
	}

	// 转移量超过库存时整体失败
	movementsBefore := len(store.movements)
	_, err = svc.TransferStock(ctx, product.ID, &domain.TransferStockRequest{
		Quantity:     20,
		FromLocation: "warehouse-a",
		ToLocation:   "warehouse-b",
	}, testActor)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}
	if len(store.movements) != movementsBefore {
		t.Errorf("Failed transfer must not append movements")
	}
}

func TestStockService_BulkUpdateStock(t *testing.T) {
	svc, _ := newTestStockService()
	ctx := context.Background()

	p1 := seedProduct(t, svc, "SKU-040", 5)
	p2 := seedProduct(t, svc, "SKU-041", 5)

	// 单项失败不影响其余项
	result, err := svc.BulkUpdateStock(ctx, &domain.BulkUpdateStockRequest{
		Updates: []domain.StockUpdateItem{
			{ProductID: p1.ID, NewStock: 12},
			{ProductID: 9999, NewStock: 3},
			{ProductID: p2.ID, NewStock: 0},
		},
		Reason: "cycle count",
	}, testActor)
	if err != nil {
		t.Fatalf("BulkUpdateStock failed: %v", err)
	}

	if len(result.Updated) != 2 {
		t.Errorf("Expected 2 updated, got %d", len(result.Updated))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(result.Errors))
	}
	if result.Errors[0].ProductID != 9999 {
		t.Errorf("Expected failure for product 9999, got %d", result.Errors[0].ProductID)
	}

	stock, _ := svc.GetStock(ctx, p1.ID)
	if stock != 12 {
		t.Errorf("Expected stock 12 for p1, got %d", stock)
	}
	stock, _ = svc.GetStock(ctx, p2.ID)
	if stock != 0 {
		t.Errorf("Expected stock 0 for p2, got %d", stock)
	}
}

// 台账重放：任一商品的流水净和必须等于当前库存
func TestStockService_LedgerReplayMatchesStock(t *testing.T) {
	svc, store := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-050", 10)

	svc.IncreaseStock(ctx, product.ID, &domain.IncreaseStockRequest{Quantity: 15}, testActor)
	svc.DecreaseStock(ctx, product.ID, &domain.DecreaseStockRequest{Quantity: 6, OrderID: 1}, testActor)
	svc.WriteOffStock(ctx, product.ID, &domain.WriteOffStockRequest{Quantity: 2}, testActor)
	svc.ReturnStock(ctx, product.ID, &domain.ReturnStockRequest{Quantity: 1, OrderID: 1}, testActor)
	svc.SetStock(ctx, product.ID, &domain.SetStockRequest{NewStock: 11}, testActor)
	svc.TransferStock(ctx, product.ID, &domain.TransferStockRequest{
		Quantity: 4, FromLocation: "a", ToLocation: "b",
	}, testActor)

	sums, err := newMockMovementRepository(store).SumChangeByProduct(ctx)
	if err != nil {
		t.Fatalf("SumChangeByProduct failed: %v", err)
	}

	stock, _ := svc.GetStock(ctx, product.ID)
	if sums[product.ID] != stock {
		t.Errorf("Ledger replay %d does not match stock %d", sums[product.ID], stock)
	}

	// 每条流水的快照自洽
	for _, mv := range store.movements {
		if !mv.IsConsistent() {
			t.Errorf("Inconsistent movement %d: %+v", mv.ID, mv)
		}
	}
}

func TestStockService_GetStockMovements(t *testing.T) {
	svc, _ := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-060", 0)
	for i := 0; i < 5; i++ {
		if _, err := svc.IncreaseStock(ctx, product.ID, &domain.IncreaseStockRequest{Quantity: i + 1}, testActor); err != nil {
			t.Fatalf("IncreaseStock failed: %v", err)
		}
	}

	movements, err := svc.GetStockMovements(ctx, product.ID, 3)
	if err != nil {
		t.Fatalf("GetStockMovements failed: %v", err)
	}
	if len(movements) != 3 {
		t.Fatalf("Expected 3 movements, got %d", len(movements))
	}

	// 最新的在前
	if movements[0].Change != 5 || movements[2].Change != 3 {
		t.Errorf("Movements must be newest first: %+v", movements)
	}

	// 商品不存在
	if _, err := svc.GetStockMovements(ctx, 9999, 10); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}
}

func TestStockService_GetStockMovementsByPeriod(t *testing.T) {
	svc, _ := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-061", 5)
	svc.IncreaseStock(ctx, product.ID, &domain.IncreaseStockRequest{Quantity: 1}, testActor)

	now := time.Now()
	movements, err := svc.GetStockMovementsByPeriod(ctx, &domain.MovementPeriodRequest{
		Start:     now.Add(-time.Hour),
		End:       now.Add(time.Hour),
		ProductID: &product.ID,
	})
	if err != nil {
		t.Fatalf("GetStockMovementsByPeriod failed: %v", err)
	}
	if len(movements) != 2 {
		t.Errorf("Expected 2 movements in period, got %d", len(movements))
	}

	// 起止时间顺序非法
	_, err = svc.GetStockMovementsByPeriod(ctx, &domain.MovementPeriodRequest{
		Start: now.Add(time.Hour),
		End:   now,
	})
	if !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Errorf("Expected ErrInvalidPeriod, got %v", err)
	}
}

func TestStockService_CheckStock(t *testing.T) {
	svc, _ := newTestStockService()
	ctx := context.Background()

	product := seedProduct(t, svc, "SKU-070", 5)

	testCases := []struct {
		quantity int
		want     bool
	}{
		{0, true},
		{1, true},
		{5, true},
		{6, false},
	}

	for _, tc := range testCases {
		got, err := svc.CheckStock(ctx, product.ID, tc.quantity)
		if err != nil {
			t.Fatalf("CheckStock(%d) failed: %v", tc.quantity, err)
		}
		if got != tc.want {
			t.Errorf("CheckStock(%d): expected %v, got %v", tc.quantity, tc.want, got)
		}
	}

	if _, err := svc.CheckStock(ctx, product.ID, -1); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("Expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := svc.CheckStock(ctx, 9999, 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}
}

func TestStockService_GetMultipleStocks(t *testing.T) {
	svc, _ := newTestStockService()
	ctx := context.Background()

	p1 := seedProduct(t, svc, "SKU-080", 3)
	p2 := seedProduct(t, svc, "SKU-081", 0)

	stocks, err := svc.GetMultipleStocks(ctx, []int64{p1.ID, p2.ID, 9999})
	if err != nil {
		t.Fatalf("GetMultipleStocks failed: %v", err)
	}

	if stocks[p1.ID] != 3 {
		t.Errorf("Expected stock 3, got %d", stocks[p1.ID])
	}
	if got, ok := stocks[p2.ID]; !ok || got != 0 {
		t.Errorf("Expected stock 0 for p2, got %d (ok=%v)", got, ok)
	}
	if _, ok := stocks[9999]; ok {
		t.Error("Missing product must not appear in result")
	}
}

func TestStockService_LowAndOutOfStock(t *testing.T) {
	svc, _ := newTestStockService()
	ctx := context.Background()

	seedProduct(t, svc, "SKU-090", 0)  // out of stock
	seedProduct(t, svc, "SKU-091", 3)  // low
	seedProduct(t, svc, "SKU-092", 10) // low（恰好等于水位）
	seedProduct(t, svc, "SKU-093", 11) // normal

	low, err := svc.GetLowStockProducts(ctx)
	if err != nil {
		t.Fatalf("GetLowStockProducts failed: %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("Expected 2 low stock products, got %d", len(low))
	}
	if low[0].Stock != 3 || low[1].Stock != 10 {
		t.Errorf("Low stock products must be sorted by stock asc: %d, %d", low[0].Stock, low[1].Stock)
	}

	out, err := svc.GetOutOfStockProducts(ctx)
	if err != nil {
		t.Fatalf("GetOutOfStockProducts failed: %v", err)
	}
	if len(out) != 1 || out[0].SKU != "SKU-090" {
		t.Errorf("Unexpected out of stock products: %+v", out)
	}
}

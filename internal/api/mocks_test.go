package api

import (
	"context"

	"github.com/teamshop/stock-ledger/internal/domain"
	"github.com/teamshop/stock-ledger/internal/service"
)

// mockStockService 是用于处理器测试的StockService模拟实现。
// 各方法委托给对应的函数字段，未设置的方法返回零值。
type mockStockService struct {
	createProductFn  func(ctx context.Context, req *domain.CreateProductRequest, actor int64) (*domain.Product, error)
	getProductFn     func(ctx context.Context, productID int64) (*domain.Product, error)
	getStockFn       func(ctx context.Context, productID int64) (int, error)
	getStocksFn      func(ctx context.Context, productIDs []int64) (map[int64]int, error)
	checkStockFn     func(ctx context.Context, productID int64, quantity int) (bool, error)
	increaseFn       func(ctx context.Context, productID int64, req *domain.IncreaseStockRequest, actor int64) (*domain.StockMovement, error)
	decreaseFn       func(ctx context.Context, productID int64, req *domain.DecreaseStockRequest, actor int64) (*domain.StockMovement, error)
	writeOffFn       func(ctx context.Context, productID int64, req *domain.WriteOffStockRequest, actor int64) (*domain.StockMovement, error)
	returnFn         func(ctx context.Context, productID int64, req *domain.ReturnStockRequest, actor int64) (*domain.StockMovement, error)
	setStockFn       func(ctx context.Context, productID int64, req *domain.SetStockRequest, actor int64) (*domain.StockMovement, error)
	transferFn       func(ctx context.Context, productID int64, req *domain.TransferStockRequest, actor int64) ([]*domain.StockMovement, error)
	bulkUpdateFn     func(ctx context.Context, req *domain.BulkUpdateStockRequest, actor int64) (*service.BulkUpdateResult, error)
	listMovementsFn  func(ctx context.Context, productID int64, limit int) ([]*domain.StockMovement, error)
	listByPeriodFn   func(ctx context.Context, req *domain.MovementPeriodRequest) ([]*domain.StockMovement, error)
	listLowStockFn   func(ctx context.Context) ([]*domain.Product, error)
	listOutOfStockFn func(ctx context.Context) ([]*domain.Product, error)
}

func (m *mockStockService) CreateProduct(ctx context.Context, req *domain.CreateProductRequest, actor int64) (*domain.Product, error) {
	if m.createProductFn == nil {
		return nil, nil
	}
	return m.createProductFn(ctx, req, actor)
}

func (m *mockStockService) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	if m.getProductFn == nil {
		return nil, nil
	}
	return m.getProductFn(ctx, productID)
}

func (m *mockStockService) GetStock(ctx context.Context, productID int64) (int, error) {
	if m.getStockFn == nil {
		return 0, nil
	}
	return m.getStockFn(ctx, productID)
}

func (m *mockStockService) GetMultipleStocks(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	if m.getStocksFn == nil {
		return map[int64]int{}, nil
	}
	return m.getStocksFn(ctx, productIDs)
}

func (m *mockStockService) CheckStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	if m.checkStockFn == nil {
		return false, nil
	}
	return m.checkStockFn(ctx, productID, quantity)
}

func (m *mockStockService) IncreaseStock(ctx context.Context, productID int64, req *domain.IncreaseStockRequest, actor int64) (*domain.StockMovement, error) {
	if m.increaseFn == nil {
		return nil, nil
	}
	return m.increaseFn(ctx, productID, req, actor)
}

func (m *mockStockService) DecreaseStock(ctx context.Context, productID int64, req *domain.DecreaseStockRequest, actor int64) (*domain.StockMovement, error) {
	if m.decreaseFn == nil {
		return nil, nil
	}
	return m.decreaseFn(ctx, productID, req, actor)
}

func (m *mockStockService) WriteOffStock(ctx context.Context, productID int64, req *domain.WriteOffStockRequest, actor int64) (*domain.StockMovement, error) {
	if m.writeOffFn == nil {
		return nil, nil
	}
	return m.writeOffFn(ctx, productID, req, actor)
}

func (m *mockStockService) ReturnStock(ctx context.Context, productID int64, req *domain.ReturnStockRequest, actor int64) (*domain.StockMovement, error) {
	if m.returnFn == nil {
		return nil, nil
	}
	return m.returnFn(ctx, productID, req, actor)
}

func (m *mockStockService) SetStock(ctx context.Context, productID int64, req *domain.SetStockRequest, actor int64) (*domain.StockMovement, error) {
	if m.setStockFn == nil {
		return nil, nil
	}
	return m.setStockFn(ctx, productID, req, actor)
}

func (m *mockStockService) TransferStock(ctx context.Context, productID int64, req *domain.TransferStockRequest, actor int64) ([]*domain.StockMovement, error) {
	if m.transferFn == nil {
		return nil, nil
	}
	return m.transferFn(ctx, productID, req, actor)
}

func (m *mockStockService) BulkUpdateStock(ctx context.Context, req *domain.BulkUpdateStockRequest, actor int64) (*service.BulkUpdateResult, error) {
	if m.bulkUpdateFn == nil {
		return &service.BulkUpdateResult{}, nil
	}
	return m.bulkUpdateFn(ctx, req, actor)
}

func (m *mockStockService) GetStockMovements(ctx context.Context, productID int64, limit int) ([]*domain.StockMovement, error) {
	if m.listMovementsFn == nil {
		return []*domain.StockMovement{}, nil
	}
	return m.listMovementsFn(ctx, productID, limit)
}

func (m *mockStockService) GetStockMovementsByPeriod(ctx context.Context, req *domain.MovementPeriodRequest) ([]*domain.StockMovement, error) {
	if m.listByPeriodFn == nil {
		return []*domain.StockMovement{}, nil
	}
	return m.listByPeriodFn(ctx, req)
}

func (m *mockStockService) GetLowStockProducts(ctx context.Context) ([]*domain.Product, error) {
	if m.listLowStockFn == nil {
		return []*domain.Product{}, nil
	}
	return m.listLowStockFn(ctx)
}

func (m *mockStockService) GetOutOfStockProducts(ctx context.Context) ([]*domain.Product, error) {
	if m.listOutOfStockFn == nil {
		return []*domain.Product{}, nil
	}
	return m.listOutOfStockFn(ctx)
}

// mockAlertService 是用于处理器测试的AlertService模拟实现
type mockAlertService struct {
	alerts []*service.StockAlert
	err    error
}

func (m *mockAlertService) Classify(stock int) service.AlertLevel {
	switch {
	case stock <= 0:
		return service.AlertLevelOutOfStock
	case stock <= 10:
		return service.AlertLevelLowStock
	default:
		return service.AlertLevelNormal
	}
}

func (m *mockAlertService) GetStockAlerts(ctx context.Context) ([]*service.StockAlert, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.alerts, nil
}

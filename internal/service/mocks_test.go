package service

import (
	"context"
	"sort"
	"time"

	"github.com/teamshop/stock-ledger/internal/domain"
)

// Mock StockRepository for testing
type mockStockRepository struct {
	products      map[int64]*domain.Product
	skuMap        map[string]*domain.Product
	movements     []*domain.StockMovement
	nextProductID int64
	nextMoveID    int64

	failNext error // 下一次写操作返回该错误
}

func newMockStockRepository() *mockStockRepository {
	return &mockStockRepository{
		products:      make(map[int64]*domain.Product),
		skuMap:        make(map[string]*domain.Product),
		nextProductID: 1,
		nextMoveID:    1,
	}
}

func (m *mockStockRepository) CreateProduct(ctx context.Context, product *domain.Product) error {
	if _, exists := m.skuMap[product.SKU]; exists {
		return domain.ErrSKUExists
	}

	product.ID = m.nextProductID
	m.nextProductID++
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt

	m.products[product.ID] = product
	m.skuMap[product.SKU] = product

	return nil
}

func (m *mockStockRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	product, exists := m.products[id]
	if !exists {
		return nil, nil
	}
	return product, nil
}

func (m *mockStockRepository) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	var result []*domain.Product
	for _, id := range ids {
		if product, exists := m.products[id]; exists {
			result = append(result, product)
		}
	}
	return result, nil
}

func (m *mockStockRepository) GetStock(ctx context.Context, productID int64) (int, error) {
	product, exists := m.products[productID]
	if !exists {
		return 0, domain.ErrProductNotFound
	}
	return product.Stock, nil
}

func (m *mockStockRepository) GetStocks(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	stocks := make(map[int64]int)
	for _, id := range productIDs {
		if product, exists := m.products[id]; exists {
			stocks[id] = product.Stock
		}
	}
	return stocks, nil
}

func (m *mockStockRepository) ApplyMovement(ctx context.Context, movement *domain.StockMovement) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}

	product, exists := m.products[movement.ProductID]
	if !exists {
		return domain.ErrProductNotFound
	}

	newStock := product.Stock + movement.Change
	if newStock < 0 {
		return domain.ErrInsufficientStock
	}

	movement.PreviousStock = product.Stock
	movement.NewStock = newStock
	movement.ID = m.nextMoveID
	m.nextMoveID++
	movement.CreatedAt = time.Now()

	product.Stock = newStock
	product.UpdatedAt = movement.CreatedAt
	m.movements = append(m.movements, movement)

	return nil
}

func (m *mockStockRepository) SetStock(ctx context.Context, movement *domain.StockMovement, target int) error {
	if target < 0 {
		return domain.ErrNegativeStock
	}

	product, exists := m.products[movement.ProductID]
	if !exists {
		return domain.ErrProductNotFound
	}

	movement.Change = target - product.Stock
	if movement.Change == 0 {
		movement.PreviousStock = product.Stock
		movement.NewStock = product.Stock
		return nil
	}

	return m.ApplyMovement(ctx, movement)
}

func (m *mockStockRepository) ApplyTransferPair(ctx context.Context, out, in *domain.StockMovement) error {
	before, exists := m.products[out.ProductID]
	var snapshot int
	if exists {
		snapshot = before.Stock
	}

	if err := m.ApplyMovement(ctx, out); err != nil {
		return err
	}
	if err := m.ApplyMovement(ctx, in); err != nil {
		// 回滚出库，模拟事务整体失败
		m.products[out.ProductID].Stock = snapshot
		m.movements = m.movements[:len(m.movements)-1]
		return err
	}
	return nil
}

func (m *mockStockRepository) ListLowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	var result []*domain.Product
	for _, product := range m.products {
		if product.Stock > 0 && product.Stock <= threshold {
			result = append(result, product)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Stock != result[j].Stock {
			return result[i].Stock < result[j].Stock
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *mockStockRepository) ListOutOfStock(ctx context.Context) ([]*domain.Product, error) {
	var result []*domain.Product
	for _, product := range m.products {
		if product.Stock == 0 {
			result = append(result, product)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Mock MovementRepository，读取mockStockRepository里落的流水
type mockMovementRepository struct {
	store *mockStockRepository
}

func newMockMovementRepository(store *mockStockRepository) *mockMovementRepository {
	return &mockMovementRepository{store: store}
}

func (m *mockMovementRepository) ListByProduct(ctx context.Context, productID int64, limit int) ([]*domain.StockMovement, error) {
	var result []*domain.StockMovement
	for i := len(m.store.movements) - 1; i >= 0 && len(result) < limit; i-- {
		if m.store.movements[i].ProductID == productID {
			result = append(result, m.store.movements[i])
		}
	}
	return result, nil
}

func (m *mockMovementRepository) ListByPeriod(ctx context.Context, req *domain.MovementPeriodRequest) ([]*domain.StockMovement, error) {
	var result []*domain.StockMovement
	for i := len(m.store.movements) - 1; i >= 0; i-- {
		mv := m.store.movements[i]
		if mv.CreatedAt.Before(req.Start) || !mv.CreatedAt.Before(req.End) {
			continue
		}
		if req.ProductID != nil && mv.ProductID != *req.ProductID {
			continue
		}
		result = append(result, mv)
	}
	return result, nil
}

func (m *mockMovementRepository) SumChangeByProduct(ctx context.Context) (map[int64]int, error) {
	sums := make(map[int64]int)
	for _, mv := range m.store.movements {
		sums[mv.ProductID] += mv.Change
	}
	return sums, nil
}

// Package service 实现库存业务逻辑层，负责库存台账和业务规则。
package service

import (
	"context"
	"fmt"

	"github.com/teamshop/stock-ledger/internal/domain"
	"github.com/teamshop/stock-ledger/internal/repo"
)

// StockService 定义库存业务逻辑接口。
// 所有写操作必须携带操作用户actor，变动连同审计流水一并落库。
type StockService interface {
	// 商品管理
	CreateProduct(ctx context.Context, req *domain.CreateProductRequest, actor int64) (*domain.Product, error)
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)

	// 库存查询
	GetStock(ctx context.Context, productID int64) (int, error)
	GetMultipleStocks(ctx context.Context, productIDs []int64) (map[int64]int, error)
	CheckStock(ctx context.Context, productID int64, quantity int) (bool, error)

	// 库存写操作
	IncreaseStock(ctx context.Context, productID int64, req *domain.IncreaseStockRequest, actor int64) (*domain.StockMovement, error)
	DecreaseStock(ctx context.Context, productID int64, req *domain.DecreaseStockRequest, actor int64) (*domain.StockMovement, error)
	WriteOffStock(ctx context.Context, productID int64, req *domain.WriteOffStockRequest, actor int64) (*domain.StockMovement, error)
	ReturnStock(ctx context.Context, productID int64, req *domain.ReturnStockRequest, actor int64) (*domain.StockMovement, error)
	SetStock(ctx context.Context, productID int64, req *domain.SetStockRequest, actor int64) (*domain.StockMovement, error)
	TransferStock(ctx context.Context, productID int64, req *domain.TransferStockRequest, actor int64) ([]*domain.StockMovement, error)

	// 批量盘点
	BulkUpdateStock(ctx context.Context, req *domain.BulkUpdateStockRequest, actor int64) (*BulkUpdateResult, error)

	// 流水查询
	GetStockMovements(ctx context.Context, productID int64, limit int) ([]*domain.StockMovement, error)
	GetStockMovementsByPeriod(ctx context.Context, req *domain.MovementPeriodRequest) ([]*domain.StockMovement, error)

	// 告警查询
	GetLowStockProducts(ctx context.Context) ([]*domain.Product, error)
	GetOutOfStockProducts(ctx context.Context) ([]*domain.Product, error)
}

// BulkUpdateResult 批量盘点结果。
// 各项独立提交，单项失败不影响其余项。
type BulkUpdateResult struct {
	Updated []*domain.StockMovement `json:"updated"`
	Errors  []BulkUpdateError       `json:"errors,omitempty"`
}

// BulkUpdateError 批量盘点中的单项失败
type BulkUpdateError struct {
	ProductID int64  `json:"product_id"`
	Message   string `json:"message"`
}

// stockService 实现StockService接口
type stockService struct {
	stockRepo        repo.StockRepository
	movementRepo     repo.MovementRepository
	lowStockLimit    int
	movementPageSize int
}

// NewStockService 创建库存服务实例
func NewStockService(stockRepo repo.StockRepository, movementRepo repo.MovementRepository, lowStockThreshold, movementPageSize int) StockService {
	return &stockService{
		stockRepo:        stockRepo,
		movementRepo:     movementRepo,
		lowStockLimit:    lowStockThreshold,
		movementPageSize: movementPageSize,
	}
}

// CreateProduct 创建商品。
// 初始库存通过一条采购流水入账，保证任何商品的库存都能由流水重放得到。
func (s *stockService) CreateProduct(ctx context.Context, req *domain.CreateProductRequest, actor int64) (*domain.Product, error) {
	if actor <= 0 {
		return nil, domain.ErrMissingActor
	}
	if req.Name == "" || req.SKU == "" {
		return nil, fmt.Errorf("%w: name and sku are required", domain.ErrInvalidQuantity)
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", domain.ErrInvalidQuantity)
	}
	if req.InitialStock < 0 {
		return nil, domain.ErrNegativeStock
	}

	product := &domain.Product{
		Name:   req.Name,
		SKU:    req.SKU,
		Price:  req.Price,
		Status: domain.ProductStatusActive,
		Stock:  0,
	}

	if err := s.stockRepo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	if req.InitialStock > 0 {
		movement := &domain.StockMovement{
			ProductID: product.ID,
			Change:    req.InitialStock,
			Reason:    "initial stock",
			Source:    domain.MovementSourcePurchase,
			CreatedBy: actor,
		}
		if err := s.stockRepo.ApplyMovement(ctx, movement); err != nil {
			return nil, fmt.Errorf("failed to record initial stock: %w", err)
		}
		product.Stock = movement.NewStock
	}

	return product, nil
}

// GetProduct 获取商品详情
func (s *stockService) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	product, err := s.stockRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	return product, nil
}

// GetStock 获取当前库存
func (s *stockService) GetStock(ctx context.Context, productID int64) (int, error) {
	return s.stockRepo.GetStock(ctx, productID)
}

// GetMultipleStocks 批量获取库存，不存在的商品不出现在结果中
func (s *stockService) GetMultipleStocks(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	if len(productIDs) == 0 {
		return map[int64]int{}, nil
	}

	return s.stockRepo.GetStocks(ctx, productIDs)
}

// CheckStock 检查库存是否满足数量要求，数量0恒为满足
func (s *stockService) CheckStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	if quantity < 0 {
		return false, domain.ErrInvalidQuantity
	}

	stock, err := s.stockRepo.GetStock(ctx, productID)
	if err != nil {
		return false, err
	}

	return stock >= quantity, nil
}

// IncreaseStock 采购入库
func (s *stockService) IncreaseStock(ctx context.Context, productID int64, req *domain.IncreaseStockRequest, actor int64) (*domain.StockMovement, error) {
	if err := validateWrite(req.Quantity, actor); err != nil {
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "restock"
	}

	movement := &domain.StockMovement{
		ProductID: productID,
		Change:    req.Quantity,
		Reason:    reason,
		Source:    domain.MovementSourcePurchase,
		CreatedBy: actor,
	}

	if err := s.stockRepo.ApplyMovement(ctx, movement); err != nil {
		return nil, err
	}

	return movement, nil
}

// DecreaseStock 订单出库，库存不足时整体失败
func (s *stockService) DecreaseStock(ctx context.Context, productID int64, req *domain.DecreaseStockRequest, actor int64) (*domain.StockMovement, error) {
	if err := validateWrite(req.Quantity, actor); err != nil {
		return nil, err
	}

	movement := &domain.StockMovement{
		ProductID: productID,
		Change:    -req.Quantity,
		Reason:    "order fulfillment",
		Source:    domain.MovementSourceOrder,
		CreatedBy: actor,
	}
	if req.OrderID > 0 {
		orderID := req.OrderID
		movement.OrderID = &orderID
	}

	if err := s.stockRepo.ApplyMovement(ctx, movement); err != nil {
		return nil, err
	}

	return movement, nil
}

// WriteOffStock 报损出库
func (s *stockService) WriteOffStock(ctx context.Context, productID int64, req *domain.WriteOffStockRequest, actor int64) (*domain.StockMovement, error) {
	if err := validateWrite(req.Quantity, actor); err != nil {
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "write-off"
	}

	movement := &domain.StockMovement{
		ProductID: productID,
		Change:    -req.Quantity,
		Reason:    reason,
		Source:    domain.MovementSourceWriteOff,
		CreatedBy: actor,
	}

	if err := s.stockRepo.ApplyMovement(ctx, movement); err != nil {
		return nil, err
	}

	return movement, nil
}

// ReturnStock 退货入库
func (s *stockService) ReturnStock(ctx context.Context, productID int64, req *domain.ReturnStockRequest, actor int64) (*domain.StockMovement, error) {
	if err := validateWrite(req.Quantity, actor); err != nil {
		return nil, err
	}

	movement := &domain.StockMovement{
		ProductID: productID,
		Change:    req.Quantity,
		Reason:    "order return",
		Source:    domain.MovementSourceReturn,
		CreatedBy: actor,
	}
	if req.OrderID > 0 {
		orderID := req.OrderID
		movement.OrderID = &orderID
	}

	if err := s.stockRepo.ApplyMovement(ctx, movement); err != nil {
		return nil, err
	}

	return movement, nil
}

// SetStock 盘点校正到绝对值。
// 目标值与当前值相同时不产生流水，返回的movement变动量为0。
func (s *stockService) SetStock(ctx context.Context, productID int64, req *domain.SetStockRequest, actor int64) (*domain.StockMovement, error) {
	if actor <= 0 {
		return nil, domain.ErrMissingActor
	}
	if req.NewStock < 0 {
		return nil, domain.ErrNegativeStock
	}

	reason := req.Reason
	if reason == "" {
		reason = "stocktake correction"
	}

	movement := &domain.StockMovement{
		ProductID: productID,
		Reason:    reason,
		Source:    domain.MovementSourceAdjustment,
		CreatedBy: actor,
	}

	if err := s.stockRepo.SetStock(ctx, movement, req.NewStock); err != nil {
		return nil, err
	}

	return movement, nil
}

// TransferStock 库位转移。
// 写入一出一入两条流水作审计，净库存不变；转移量不能超过当前库存。
func (s *stockService) TransferStock(ctx context.Context, productID int64, req *domain.TransferStockRequest, actor int64) ([]*domain.StockMovement, error) {
	if err := validateWrite(req.Quantity, actor); err != nil {
		return nil, err
	}
	if req.FromLocation == "" || req.ToLocation == "" {
		return nil, fmt.Errorf("%w: from_location and to_location are required", domain.ErrInvalidQuantity)
	}

	notes := fmt.Sprintf("%s -> %s", req.FromLocation, req.ToLocation)

	out := &domain.StockMovement{
		ProductID: productID,
		Change:    -req.Quantity,
		Reason:    fmt.Sprintf("transfer out to %s", req.ToLocation),
		Source:    domain.MovementSourceTransfer,
		CreatedBy: actor,
		Notes:     &notes,
	}
	in := &domain.StockMovement{
		ProductID: productID,
		Change:    req.Quantity,
		Reason:    fmt.Sprintf("transfer in from %s", req.FromLocation),
		Source:    domain.MovementSourceTransfer,
		CreatedBy: actor,
		Notes:     &notes,
	}

	if err := s.stockRepo.ApplyTransferPair(ctx, out, in); err != nil {
		return nil, err
	}

	return []*domain.StockMovement{out, in}, nil
}

// BulkUpdateStock 批量盘点，各项独立提交，失败项记录在结果中
func (s *stockService) BulkUpdateStock(ctx context.Context, req *domain.BulkUpdateStockRequest, actor int64) (*BulkUpdateResult, error) {
	if actor <= 0 {
		return nil, domain.ErrMissingActor
	}
	if len(req.Updates) == 0 {
		return nil, fmt.Errorf("%w: updates are required", domain.ErrInvalidQuantity)
	}

	reason := req.Reason
	if reason == "" {
		reason = "bulk stocktake"
	}

	result := &BulkUpdateResult{}
	for _, item := range req.Updates {
		movement, err := s.SetStock(ctx, item.ProductID, &domain.SetStockRequest{
			NewStock: item.NewStock,
			Reason:   reason,
		}, actor)
		if err != nil {
			result.Errors = append(result.Errors, BulkUpdateError{
				ProductID: item.ProductID,
				Message:   err.Error(),
			})
			continue
		}
		result.Updated = append(result.Updated, movement)
	}

	return result, nil
}

// GetStockMovements 按商品查询流水，最新的在前
func (s *stockService) GetStockMovements(ctx context.Context, productID int64, limit int) ([]*domain.StockMovement, error) {
	if limit <= 0 || limit > 1000 {
		limit = s.movementPageSize
	}

	// 商品不存在和没有流水是不同的结果
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	movements, err := s.movementRepo.ListByProduct(ctx, productID, limit)
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []*domain.StockMovement{}
	}

	return movements, nil
}

// GetStockMovementsByPeriod 按时间段查询流水
func (s *stockService) GetStockMovementsByPeriod(ctx context.Context, req *domain.MovementPeriodRequest) ([]*domain.StockMovement, error) {
	if req.Start.IsZero() || req.End.IsZero() || !req.Start.Before(req.End) {
		return nil, domain.ErrInvalidPeriod
	}

	movements, err := s.movementRepo.ListByPeriod(ctx, req)
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []*domain.StockMovement{}
	}

	return movements, nil
}

// GetLowStockProducts 获取低库存商品
func (s *stockService) GetLowStockProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.stockRepo.ListLowStock(ctx, s.lowStockLimit)
}

// GetOutOfStockProducts 获取零库存商品
func (s *stockService) GetOutOfStockProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.stockRepo.ListOutOfStock(ctx)
}

// validateWrite 校验写操作的公共前置条件
func validateWrite(quantity int, actor int64) error {
	if actor <= 0 {
		return domain.ErrMissingActor
	}
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return nil
}

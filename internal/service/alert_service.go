// Package service 实现库存告警的计算和缓存。
package service

import (
	"context"
	"sync"
	"time"

	"github.com/teamshop/stock-ledger/internal/domain"
	"github.com/teamshop/stock-ledger/internal/repo"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelNormal     AlertLevel = "normal"
	AlertLevelLowStock   AlertLevel = "low_stock"
	AlertLevelOutOfStock AlertLevel = "out_of_stock"
)

// StockAlert 单条库存告警
type StockAlert struct {
	ProductID    int64      `json:"product_id"`
	ProductName  string     `json:"product_name"`
	ProductSKU   string     `json:"product_sku"`
	CurrentStock int        `json:"current_stock"`
	Threshold    int        `json:"threshold"`
	Level        AlertLevel `json:"level"`
}

// AlertService 定义库存告警接口
type AlertService interface {
	// Classify 按当前库存和水位判定告警级别
	Classify(stock int) AlertLevel
	// GetStockAlerts 返回告警列表，零库存在前，其余按库存升序
	GetStockAlerts(ctx context.Context) ([]*StockAlert, error)
}

// alertService 实现AlertService接口。
// 告警列表按需重算并短暂缓存，避免列表页高频查询打满数据库。
type alertService struct {
	stockRepo repo.StockRepository
	threshold int
	cacheTTL  time.Duration

	mu        sync.Mutex
	cached    []*StockAlert
	expiresAt time.Time
}

// NewAlertService 创建告警服务实例
func NewAlertService(stockRepo repo.StockRepository, threshold int, cacheTTL time.Duration) AlertService {
	return &alertService{
		stockRepo: stockRepo,
		threshold: threshold,
		cacheTTL:  cacheTTL,
	}
}

// Classify 按库存判定告警级别。
// 0 为零库存告警，(0, threshold] 为低库存告警。
func (s *alertService) Classify(stock int) AlertLevel {
	switch {
	case stock <= 0:
		return AlertLevelOutOfStock
	case stock <= s.threshold:
		return AlertLevelLowStock
	default:
		return AlertLevelNormal
	}
}

// GetStockAlerts 返回告警列表
func (s *alertService) GetStockAlerts(ctx context.Context) ([]*StockAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Now().Before(s.expiresAt) {
		return s.cached, nil
	}

	alerts, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	s.cached = alerts
	s.expiresAt = time.Now().Add(s.cacheTTL)

	return alerts, nil
}

func (s *alertService) compute(ctx context.Context) ([]*StockAlert, error) {
	outOfStock, err := s.stockRepo.ListOutOfStock(ctx)
	if err != nil {
		return nil, err
	}

	// 低库存查询已按库存升序排列
	lowStock, err := s.stockRepo.ListLowStock(ctx, s.threshold)
	if err != nil {
		return nil, err
	}

	alerts := make([]*StockAlert, 0, len(outOfStock)+len(lowStock))
	for _, p := range outOfStock {
		alerts = append(alerts, s.toAlert(p))
	}
	for _, p := range lowStock {
		alerts = append(alerts, s.toAlert(p))
	}

	return alerts, nil
}

func (s *alertService) toAlert(p *domain.Product) *StockAlert {
	return &StockAlert{
		ProductID:    p.ID,
		ProductName:  p.Name,
		ProductSKU:   p.SKU,
		CurrentStock: p.Stock,
		Threshold:    s.threshold,
		Level:        s.Classify(p.Stock),
	}
}

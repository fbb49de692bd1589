// Package repo 提供带缓存的库存仓储实现
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/teamshop/stock-ledger/internal/cache"
	"github.com/teamshop/stock-ledger/internal/domain"
)

// CachedStockRepository 带缓存的库存仓储。
// 商品主数据走通用对象缓存，库存计数走Redis读镜像；
// 镜像只加速读路径，写路径的真值始终来自数据库事务。
type CachedStockRepository struct {
	repo   StockRepository
	cache  cache.Cache
	mirror *cache.StockMirror
	ttl    time.Duration
}

// NewCachedStockRepository 创建带缓存的库存仓储
func NewCachedStockRepository(repo StockRepository, c cache.Cache, mirror *cache.StockMirror, ttl time.Duration) StockRepository {
	return &CachedStockRepository{
		repo:   repo,
		cache:  c,
		mirror: mirror,
		ttl:    ttl,
	}
}

// CreateProduct 创建商品（预热库存镜像）
func (r *CachedStockRepository) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := r.repo.CreateProduct(ctx, product); err != nil {
		return err
	}

	r.mirror.Set(ctx, product.ID, product.Stock, r.stockTTL())

	return nil
}

// GetByID 根据ID获取商品（带缓存）
func (r *CachedStockRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	cacheKey := r.productCacheKey(id)

	// 尝试从缓存获取
	var product domain.Product
	err := r.cache.Get(ctx, cacheKey, &product)
	if err == nil {
		return &product, nil
	}

	// 缓存未命中，从数据库获取
	result, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	// 写入缓存（库存字段变化频繁，TTL设置较短）
	r.cache.Set(ctx, cacheKey, result, r.stockTTL())
	r.mirror.Set(ctx, result.ID, result.Stock, r.stockTTL())

	return result, nil
}

// GetByIDs 批量获取商品（部分缓存）
func (r *CachedStockRepository) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	var cached []*domain.Product
	var missing []int64

	// 尝试从缓存获取
	for _, id := range ids {
		var product domain.Product
		err := r.cache.Get(ctx, r.productCacheKey(id), &product)
		if err == nil {
			cached = append(cached, &product)
		} else {
			missing = append(missing, id)
		}
	}

	// 如果所有数据都在缓存中，直接返回
	if len(missing) == 0 {
		return cached, nil
	}

	// 从数据库获取未缓存的数据
	dbProducts, err := r.repo.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}

	// 缓存从数据库获取的数据
	for _, product := range dbProducts {
		r.cache.Set(ctx, r.productCacheKey(product.ID), product, r.stockTTL())
		r.mirror.Set(ctx, product.ID, product.Stock, r.stockTTL())
	}

	return append(cached, dbProducts...), nil
}

// GetStock 读取库存计数，优先走镜像
func (r *CachedStockRepository) GetStock(ctx context.Context, productID int64) (int, error) {
	stock, found, err := r.mirror.Get(ctx, productID)
	if err == nil && found {
		return stock, nil
	}

	// 镜像缺失或Redis故障，回源数据库并回填
	stock, err = r.repo.GetStock(ctx, productID)
	if err != nil {
		return 0, err
	}

	r.mirror.Set(ctx, productID, stock, r.stockTTL())

	return stock, nil
}

// GetStocks 批量读取库存计数，镜像命中部分不再回源
func (r *CachedStockRepository) GetStocks(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	stocks, err := r.mirror.GetBatch(ctx, productIDs)
	if err != nil {
		// Redis故障时整体回源
		return r.repo.GetStocks(ctx, productIDs)
	}

	var missing []int64
	for _, id := range productIDs {
		if _, ok := stocks[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return stocks, nil
	}

	dbStocks, err := r.repo.GetStocks(ctx, missing)
	if err != nil {
		return nil, err
	}

	for id, stock := range dbStocks {
		stocks[id] = stock
		r.mirror.Set(ctx, id, stock, r.stockTTL())
	}

	return stocks, nil
}

// ApplyMovement 应用库存变动（同步镜像）
func (r *CachedStockRepository) ApplyMovement(ctx context.Context, movement *domain.StockMovement) error {
	if err := r.repo.ApplyMovement(ctx, movement); err != nil {
		return err
	}

	r.syncAfterWrite(ctx, movement)

	return nil
}

// SetStock 盘点到绝对值（同步镜像）
func (r *CachedStockRepository) SetStock(ctx context.Context, movement *domain.StockMovement, target int) error {
	if err := r.repo.SetStock(ctx, movement, target); err != nil {
		return err
	}

	// 盘点后镜像直接取事务算出的绝对值
	r.cache.Del(ctx, r.productCacheKey(movement.ProductID))
	r.mirror.Set(ctx, movement.ProductID, movement.NewStock, r.stockTTL())

	return nil
}

// ApplyTransferPair 应用调拨流水（净值不变，仅失效对象缓存）
func (r *CachedStockRepository) ApplyTransferPair(ctx context.Context, out, in *domain.StockMovement) error {
	if err := r.repo.ApplyTransferPair(ctx, out, in); err != nil {
		return err
	}

	r.cache.Del(ctx, r.productCacheKey(out.ProductID))
	r.mirror.Set(ctx, in.ProductID, in.NewStock, r.stockTTL())

	return nil
}

// ListLowStock 获取低库存商品（不缓存，告警路径要求读到最新值）
func (r *CachedStockRepository) ListLowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	return r.repo.ListLowStock(ctx, threshold)
}

// ListOutOfStock 获取零库存商品（不缓存）
func (r *CachedStockRepository) ListOutOfStock(ctx context.Context) ([]*domain.Product, error) {
	return r.repo.ListOutOfStock(ctx)
}

// syncAfterWrite 写成功后失效对象缓存并原子推进镜像。
// 镜像缺失时不回填，留给下一次读取带着数据库真值回填。
func (r *CachedStockRepository) syncAfterWrite(ctx context.Context, movement *domain.StockMovement) {
	r.cache.Del(ctx, r.productCacheKey(movement.ProductID))

	_, applied, err := r.mirror.ApplyDelta(ctx, movement.ProductID, movement.Change, r.stockTTL())
	if err != nil || applied {
		return
	}

	// 追加失败且明确知道真值，兜底写入
	if err := r.mirror.Set(ctx, movement.ProductID, movement.NewStock, r.stockTTL()); err != nil {
		_ = r.mirror.Invalidate(ctx, movement.ProductID)
	}
}

// stockTTL 库存数据TTL设置较短，因为变化频繁
func (r *CachedStockRepository) stockTTL() time.Duration {
	return r.ttl / 2
}

func (r *CachedStockRepository) productCacheKey(id int64) string {
	return fmt.Sprintf("product:id:%d", id)
}

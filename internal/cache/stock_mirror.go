// Package cache 提供库存镜像的Redis操作和Lua脚本
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StockMirror 库存读镜像。
// 数据库是库存的唯一权威来源，镜像只服务读路径；
// 镜像缺失或被判定漂移时直接失效，由下一次读取回填。
// nil镜像（未启用Redis时）所有操作退化为未命中或空操作。
type StockMirror struct {
	client redis.Cmdable
}

// NewStockMirror 创建库存镜像实例
func NewStockMirror(client redis.Cmdable) *StockMirror {
	return &StockMirror{
		client: client,
	}
}

// Redis Key 模板常量
const (
	// 商品库存镜像Key: stock:product:{product_id}
	StockMirrorKeyTemplate = "stock:product:%d"
)

// Lua脚本：原子性追加库存变动。
// 键不存在时不回填（返回miss），避免用过期的delta构造镜像值；
// 追加后出现负数说明镜像已漂移，直接删除键。
const luaApplyStockDelta = `
-- KEYS[1]: 库存镜像key (stock:product:{product_id})
-- ARGV[1]: 变动量（可为负）
-- ARGV[2]: TTL（秒）

local current = redis.call('GET', KEYS[1])
if current == false then
    return -1  -- 镜像缺失
end

local new_stock = tonumber(current) + tonumber(ARGV[1])
if new_stock < 0 then
    redis.call('DEL', KEYS[1])
    return -2  -- 镜像漂移，已失效
end

redis.call('SETEX', KEYS[1], tonumber(ARGV[2]), new_stock)
return new_stock
`

// Lua脚本：批量读取库存镜像
const luaGetStockBatch = `
-- KEYS: 多个库存镜像key
-- 返回: 每个key对应的库存数量，不存在返回-1

local result = {}
for i = 1, #KEYS do
    local stock = redis.call('GET', KEYS[i])
    if stock == false then
        result[i] = -1
    else
        result[i] = tonumber(stock)
    end
end
return result
`

func (s *StockMirror) key(productID int64) string {
	return fmt.Sprintf(StockMirrorKeyTemplate, productID)
}

// Set 写入镜像值（读路径回填或写路径兜底）
func (s *StockMirror) Set(ctx context.Context, productID int64, stock int, ttl time.Duration) error {
	if s == nil {
		return nil
	}

	err := s.client.Set(ctx, s.key(productID), stock, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set stock mirror: %w", err)
	}

	return nil
}

// Get 读取镜像值，found为false表示镜像缺失
func (s *StockMirror) Get(ctx context.Context, productID int64) (int, bool, error) {
	if s == nil {
		return 0, false, nil
	}

	result := s.client.Get(ctx, s.key(productID))
	if result.Err() == redis.Nil {
		return 0, false, nil
	}
	if result.Err() != nil {
		return 0, false, fmt.Errorf("failed to get stock mirror: %w", result.Err())
	}

	stock, err := result.Int()
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse stock value: %w", err)
	}

	return stock, true, nil
}

// GetBatch 批量读取镜像值，缺失的商品不出现在返回的map中
func (s *StockMirror) GetBatch(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	if s == nil || len(productIDs) == 0 {
		return make(map[int64]int), nil
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = s.key(id)
	}

	result := s.client.Eval(ctx, luaGetStockBatch, keys)
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to execute batch get script: %w", result.Err())
	}

	values, ok := result.Val().([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected script result format")
	}

	stockMap := make(map[int64]int, len(values))
	for i, value := range values {
		stock, ok := value.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected stock value type at index %d", i)
		}
		if stock >= 0 {
			stockMap[productIDs[i]] = int(stock)
		}
	}

	return stockMap, nil
}

// ApplyDelta 原子性追加变动量，applied为false表示镜像缺失或已因漂移失效
func (s *StockMirror) ApplyDelta(ctx context.Context, productID int64, delta int, ttl time.Duration) (int, bool, error) {
	if s == nil {
		return 0, false, nil
	}

	result := s.client.Eval(ctx, luaApplyStockDelta,
		[]string{s.key(productID)},
		delta, int(ttl.Seconds()))

	if result.Err() != nil {
		return 0, false, fmt.Errorf("failed to execute apply delta script: %w", result.Err())
	}

	newStock, ok := result.Val().(int64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected script result type")
	}

	if newStock < 0 {
		return 0, false, nil
	}

	return int(newStock), true, nil
}

// Invalidate 删除镜像键，由下一次读取回填
func (s *StockMirror) Invalidate(ctx context.Context, productIDs ...int64) error {
	if s == nil || len(productIDs) == 0 {
		return nil
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = s.key(id)
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate stock mirror: %w", err)
	}

	return nil
}

// Package domain 定义商品库存相关的业务领域模型和核心业务规则。
package domain

import (
	"time"
)

// ProductStatus 定义商品状态类型
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"   // 正常销售
	ProductStatusInactive ProductStatus = "inactive" // 暂停销售
)

// Product 表示商品的库存主记录。
// Stock 字段是当前库存的权威计数，只允许通过 StockService 修改；
// 每次变更都必须伴随一条对应的 StockMovement 流水。
type Product struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	SKU       string        `json:"sku"`
	Price     float64       `json:"price"`
	Status    ProductStatus `json:"status"`
	Stock     int           `json:"stock"` // 当前库存，永不为负
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// IsAvailable 判断商品是否可售
func (p *Product) IsAvailable() bool {
	return p.Status == ProductStatusActive
}

// IsOutOfStock 判断是否缺货
func (p *Product) IsOutOfStock() bool {
	return p.Stock == 0
}

// IsLowStock 判断是否低于补货水位（缺货单独分类，不算低库存）
func (p *Product) IsLowStock(threshold int) bool {
	return p.Stock > 0 && p.Stock <= threshold
}

// CreateProductRequest 表示创建库存主记录的请求。
// 商品目录的其余字段（描述、图片等）由商品系统维护，不属于本服务。
type CreateProductRequest struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Price        float64 `json:"price"`
	InitialStock int     `json:"initial_stock"` // 可选，默认0
}

// Package domain 定义跨层共享的领域错误。
// 各层用 errors.Is 判定错误种类，API 层据此映射 HTTP 状态码。
package domain

import "errors"

var (
	// ErrProductNotFound 商品不存在（没有对应的库存主记录）
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock 出库数量超过当前库存
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidQuantity 数量参数非法（要求正整数的场景传入了0或负数）
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrNegativeStock 盘点目标值为负数
	ErrNegativeStock = errors.New("stock cannot be negative")

	// ErrMissingActor 缺少操作用户，所有写操作都必须携带
	ErrMissingActor = errors.New("acting user is required")

	// ErrSKUExists SKU已被占用
	ErrSKUExists = errors.New("sku already exists")

	// ErrInvalidPeriod 时间段参数非法（起始时间不早于结束时间）
	ErrInvalidPeriod = errors.New("period start must be before end")
)

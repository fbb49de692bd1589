// Package domain 定义库存流水（movement）的领域模型。
package domain

import (
	"time"
)

// MovementSource 定义库存变动的来源类型
type MovementSource string

const (
	MovementSourceOrder      MovementSource = "order"      // 订单扣减
	MovementSourcePurchase   MovementSource = "purchase"   // 采购入库
	MovementSourceAdjustment MovementSource = "adjustment" // 盘点调整
	MovementSourceWriteOff   MovementSource = "write_off"  // 报损出库
	MovementSourceReturn     MovementSource = "return"     // 退货入库
	MovementSourceTransfer   MovementSource = "transfer"   // 库位转移
)

// StockMovement 表示一条库存变动流水。
// 流水是追加写入的审计记录，写入后不允许更新或删除；
// 如需纠错，追加一条反向流水。
type StockMovement struct {
	ID            int64          `json:"id"`
	ProductID     int64          `json:"product_id"`
	Change        int            `json:"change"`         // 有符号变动量，正为入库，负为出库，恒不为0
	Reason        string         `json:"reason"`         // 人类可读的变动原因
	Source        MovementSource `json:"source"`         // 变动来源
	OrderID       *int64         `json:"order_id"`       // 关联订单，source 为 order/return 时存在
	CreatedBy     int64          `json:"created_by"`     // 操作用户ID
	PreviousStock int            `json:"previous_stock"` // 变动前库存快照
	NewStock      int            `json:"new_stock"`      // 变动后库存快照
	Notes         *string        `json:"notes"`          // 附加说明
	CreatedAt     time.Time      `json:"created_at"`
}

// IsConsistent 校验快照与变动量的一致性：new - previous == change
func (m *StockMovement) IsConsistent() bool {
	return m.NewStock-m.PreviousStock == m.Change
}

// IncreaseStockRequest 表示入库请求
type IncreaseStockRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// DecreaseStockRequest 表示销售出库请求
type DecreaseStockRequest struct {
	Quantity int   `json:"quantity"`
	OrderID  int64 `json:"order_id"`
}

// WriteOffStockRequest 表示报损出库请求
type WriteOffStockRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// ReturnStockRequest 表示退货入库请求
type ReturnStockRequest struct {
	Quantity int   `json:"quantity"`
	OrderID  int64 `json:"order_id"`
}

// SetStockRequest 表示盘点校正请求，直接指定库存绝对值
type SetStockRequest struct {
	NewStock int    `json:"new_stock"`
	Reason   string `json:"reason"`
}

// TransferStockRequest 表示库位转移请求。
// 转移只产生成对的审计流水，不改变净库存。
type TransferStockRequest struct {
	Quantity     int    `json:"quantity"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
}

// StockUpdateItem 表示批量盘点中的单项
type StockUpdateItem struct {
	ProductID int64 `json:"product_id"`
	NewStock  int   `json:"new_stock"`
}

// BulkUpdateStockRequest 表示批量盘点请求。
// 各项相互独立提交，不保证跨商品的原子性。
type BulkUpdateStockRequest struct {
	Updates []StockUpdateItem `json:"updates"`
	Reason  string            `json:"reason"`
}

// MovementPeriodRequest 表示按时间段查询流水的请求
type MovementPeriodRequest struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	ProductID *int64    `json:"product_id"` // 可选，只看某个商品
}

// Package repo 实现库存流水的查询访问。
package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/teamshop/stock-ledger/internal/domain"
)

// MovementRepository 定义库存流水的只读访问接口。
// 流水只能由库存写事务追加，这里不暴露任何写方法。
type MovementRepository interface {
	ListByProduct(ctx context.Context, productID int64, limit int) ([]*domain.StockMovement, error)
	ListByPeriod(ctx context.Context, req *domain.MovementPeriodRequest) ([]*domain.StockMovement, error)
	// SumChangeByProduct 按商品汇总流水变动量，供对账使用
	SumChangeByProduct(ctx context.Context) (map[int64]int, error)
}

const movementColumns = "id, product_id, `change`, reason, source, order_id, created_by, previous_stock, new_stock, notes, created_at"

// movementRepo 实现MovementRepository接口
type movementRepo struct {
	db *sql.DB
}

// NewMovementRepository 创建流水仓储实例
func NewMovementRepository(db *sql.DB) MovementRepository {
	return &movementRepo{db: db}
}

// ListByProduct 按商品查询流水，最新的在前
func (r *movementRepo) ListByProduct(ctx context.Context, productID int64, limit int) ([]*domain.StockMovement, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM stock_movements
		WHERE product_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, movementColumns)

	rows, err := r.db.QueryContext(ctx, query, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements by product: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// ListByPeriod 按时间段查询流水，可选按商品过滤，最新的在前
func (r *movementRepo) ListByPeriod(ctx context.Context, req *domain.MovementPeriodRequest) ([]*domain.StockMovement, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM stock_movements
		WHERE created_at >= ? AND created_at < ?
	`, movementColumns)
	args := []interface{}{req.Start, req.End}

	if req.ProductID != nil {
		query += " AND product_id = ?"
		args = append(args, *req.ProductID)
	}
	query += " ORDER BY id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements by period: %w", err)
	}
	defer rows.Close()

	return scanMovements(rows)
}

// SumChangeByProduct 汇总每个商品的流水净变动
func (r *movementRepo) SumChangeByProduct(ctx context.Context) (map[int64]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, COALESCE(SUM(`+"`change`"+`), 0)
		FROM stock_movements
		GROUP BY product_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to sum movements: %w", err)
	}
	defer rows.Close()

	sums := make(map[int64]int)
	for rows.Next() {
		var productID int64
		var sum int
		if err := rows.Scan(&productID, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan movement sum: %w", err)
		}
		sums[productID] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movement sums: %w", err)
	}

	return sums, nil
}

func scanMovements(rows *sql.Rows) ([]*domain.StockMovement, error) {
	var movements []*domain.StockMovement
	for rows.Next() {
		m := &domain.StockMovement{}
		err := rows.Scan(
			&m.ID,
			&m.ProductID,
			&m.Change,
			&m.Reason,
			&m.Source,
			&m.OrderID,
			&m.CreatedBy,
			&m.PreviousStock,
			&m.NewStock,
			&m.Notes,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stock movements: %w", err)
	}

	return movements, nil
}

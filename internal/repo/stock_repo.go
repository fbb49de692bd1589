// Package repo 实现库存数据访问层，负责与数据库的交互。
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/teamshop/stock-ledger/internal/domain"
)

// StockRepository 定义库存主记录的数据访问接口。
// 所有写操作在单个事务内同时更新库存计数和追加流水，二者不可分离。
type StockRepository interface {
	// 商品主记录
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error)

	// 库存读路径，GetStocks 返回的map中缺失的ID表示商品不存在
	GetStock(ctx context.Context, productID int64) (int, error)
	GetStocks(ctx context.Context, productIDs []int64) (map[int64]int, error)

	// 库存写操作，movement.Change 为变动量（可为负）
	ApplyMovement(ctx context.Context, movement *domain.StockMovement) error
	// 盘点：将库存设置为绝对值，变动量由事务内读取的当前值推导
	SetStock(ctx context.Context, movement *domain.StockMovement, target int) error
	// 调拨：同一事务内写入一出一入两条流水，库存净值不变
	ApplyTransferPair(ctx context.Context, out, in *domain.StockMovement) error

	// 告警查询
	ListLowStock(ctx context.Context, threshold int) ([]*domain.Product, error)
	ListOutOfStock(ctx context.Context) ([]*domain.Product, error)
}

const productColumns = "id, name, sku, price, status, stock, created_at, updated_at"

// stockRepo 实现StockRepository接口
type stockRepo struct {
	db *sql.DB
}

// NewStockRepository 创建库存仓储实例
func NewStockRepository(db *sql.DB) StockRepository {
	return &stockRepo{db: db}
}

// CreateProduct 创建商品及其库存主记录
func (r *stockRepo) CreateProduct(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (name, sku, price, status, stock)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		product.Name,
		product.SKU,
		product.Price,
		product.Status,
		product.Stock,
	)
	if err != nil {
		// MySQL 1062: 唯一键冲突，products.sku 上有唯一索引
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return domain.ErrSKUExists
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	product.ID = id
	return nil
}

// GetByID 根据ID获取商品，不存在时返回 (nil, nil)
func (r *stockRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = ?`, productColumns)

	product := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.SKU,
		&product.Price,
		&product.Status,
		&product.Stock,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by id: %w", err)
	}

	return product, nil
}

// GetByIDs 根据ID列表批量获取商品
func (r *stockRepo) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}

	// 构建IN子句
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE id IN (%s)
		ORDER BY id
	`, productColumns, placeholders)

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by ids: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// GetStock 读取当前库存计数，商品不存在时返回 domain.ErrProductNotFound
func (r *stockRepo) GetStock(ctx context.Context, productID int64) (int, error) {
	var stock int
	err := r.db.QueryRowContext(ctx,
		`SELECT stock FROM products WHERE id = ?`, productID,
	).Scan(&stock)

	if err == sql.ErrNoRows {
		return 0, domain.ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get stock: %w", err)
	}

	return stock, nil
}

// GetStocks 批量读取库存计数，不存在的商品不出现在返回的map中
func (r *stockRepo) GetStocks(ctx context.Context, productIDs []int64) (map[int64]int, error) {
	stocks := make(map[int64]int, len(productIDs))
	if len(productIDs) == 0 {
		return stocks, nil
	}

	placeholders := strings.Repeat("?,", len(productIDs)-1) + "?"
	query := fmt.Sprintf(`SELECT id, stock FROM products WHERE id IN (%s)`, placeholders)

	args := make([]interface{}, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var stock int
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks[id] = stock
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stocks: %w", err)
	}

	return stocks, nil
}

// ApplyMovement 在单个事务内应用一次库存变动并追加流水。
// 库存不足时返回 domain.ErrInsufficientStock，商品不存在时返回 domain.ErrProductNotFound。
func (r *stockRepo) ApplyMovement(ctx context.Context, movement *domain.StockMovement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.applyMovementInTx(ctx, tx, movement); err != nil {
		return err
	}

	return tx.Commit()
}

// SetStock 盘点到绝对值，变动量为目标值与事务内当前值之差。
// 目标值与当前值相同时不产生流水。
func (r *stockRepo) SetStock(ctx context.Context, movement *domain.StockMovement, target int) error {
	if target < 0 {
		return domain.ErrNegativeStock
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := r.lockStock(ctx, tx, movement.ProductID)
	if err != nil {
		return err
	}

	movement.Change = target - current
	if movement.Change == 0 {
		movement.PreviousStock = current
		movement.NewStock = current
		return tx.Commit()
	}

	if err := r.applyMovementInTx(ctx, tx, movement); err != nil {
		return err
	}

	return tx.Commit()
}

// ApplyTransferPair 在同一事务内依次应用出库和入库流水。
// 两条流水数量相抵，事务提交后库存净值不变。
func (r *stockRepo) ApplyTransferPair(ctx context.Context, out, in *domain.StockMovement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.applyMovementInTx(ctx, tx, out); err != nil {
		return err
	}
	if err := r.applyMovementInTx(ctx, tx, in); err != nil {
		return err
	}

	return tx.Commit()
}

// ListLowStock 获取低库存商品，库存越少越靠前
func (r *stockRepo) ListLowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE stock > 0 AND stock <= ?
		ORDER BY stock ASC, id ASC
	`, productColumns)

	rows, err := r.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// ListOutOfStock 获取零库存商品
func (r *stockRepo) ListOutOfStock(ctx context.Context) ([]*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE stock = 0
		ORDER BY updated_at DESC, id ASC
	`, productColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query out of stock products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// lockStock 在事务内锁定并读取当前库存
func (r *stockRepo) lockStock(ctx context.Context, tx *sql.Tx, productID int64) (int, error) {
	var stock int
	err := tx.QueryRowContext(ctx,
		`SELECT stock FROM products WHERE id = ? FOR UPDATE`, productID,
	).Scan(&stock)

	if err == sql.ErrNoRows {
		return 0, domain.ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock stock row: %w", err)
	}

	return stock, nil
}

// applyMovementInTx 锁定库存行，条件更新计数并追加流水。
// 条件更新里的 stock + ? >= 0 是对行锁之外并发路径的最后防线。
func (r *stockRepo) applyMovementInTx(ctx context.Context, tx *sql.Tx, movement *domain.StockMovement) error {
	current, err := r.lockStock(ctx, tx, movement.ProductID)
	if err != nil {
		return err
	}

	newStock := current + movement.Change
	if newStock < 0 {
		return domain.ErrInsufficientStock
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?
		WHERE id = ? AND stock + ? >= 0
	`, movement.Change, movement.ProductID, movement.Change)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrInsufficientStock
	}

	movement.PreviousStock = current
	movement.NewStock = newStock

	insert, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements
			(product_id, `+"`change`"+`, reason, source, order_id, created_by, previous_stock, new_stock, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		movement.ProductID,
		movement.Change,
		movement.Reason,
		movement.Source,
		movement.OrderID,
		movement.CreatedBy,
		movement.PreviousStock,
		movement.NewStock,
		movement.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert stock movement: %w", err)
	}

	id, err := insert.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get movement insert id: %w", err)
	}
	movement.ID = id

	return nil
}

func scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	var products []*domain.Product
	for rows.Next() {
		product := &domain.Product{}
		err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.SKU,
			&product.Price,
			&product.Status,
			&product.Stock,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

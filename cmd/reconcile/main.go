// Package main 提供库存对账的命令行工具。
// 对每个商品重放流水（SUM(change)）并与库存计数器比对，
// 两者不一致说明出现了绕过台账的写入或数据损坏。
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/teamshop/stock-ledger/internal/config"
	"github.com/teamshop/stock-ledger/internal/database"
	"github.com/teamshop/stock-ledger/internal/logger"
	"github.com/teamshop/stock-ledger/internal/repo"
)

// productCounter 对账时读取的商品库存计数
type productCounter struct {
	ID    int64
	SKU   string
	Stock int
}

func main() {
	var (
		repair  = flag.Bool("repair", false, "Reset drifted counters to the ledger sum")
		timeout = flag.Duration("timeout", 5*time.Minute, "Overall timeout for the reconciliation run")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "reconcile", cfg.App.Version)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	db, err := database.New(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	movementRepo := repo.NewMovementRepository(db.DB)

	// 流水是权威审计记录，对账以流水重放值为准
	sums, err := movementRepo.SumChangeByProduct(ctx)
	if err != nil {
		lg.Sugar().Fatalw("failed to replay ledger", "error", err)
	}

	counters, err := loadCounters(ctx, db)
	if err != nil {
		lg.Sugar().Fatalw("failed to load stock counters", "error", err)
	}

	drifted := 0
	repaired := 0
	for _, p := range counters {
		// 没有流水的商品重放值为0
		expected := sums[p.ID]
		if p.Stock == expected {
			continue
		}

		drifted++
		lg.Sugar().Warnw("stock counter drift detected",
			"product_id", p.ID,
			"sku", p.SKU,
			"counter", p.Stock,
			"ledger_sum", expected,
			"delta", p.Stock-expected,
		)

		if !*repair {
			continue
		}

		// 计数器回写为重放值；带旧值条件，避免覆盖对账期间的并发变动
		res, err := db.DB.ExecContext(ctx,
			"UPDATE products SET stock = ? WHERE id = ? AND stock = ?",
			expected, p.ID, p.Stock)
		if err != nil {
			lg.Sugar().Errorw("failed to repair counter", "product_id", p.ID, "error", err)
			continue
		}
		affected, err := res.RowsAffected()
		if err != nil || affected == 0 {
			lg.Sugar().Warnw("counter changed during reconciliation, skipped", "product_id", p.ID)
			continue
		}

		repaired++
		lg.Sugar().Infow("counter repaired", "product_id", p.ID, "stock", expected)
	}

	// 只存在流水却没有商品主记录同样是异常
	counterIDs := make(map[int64]bool, len(counters))
	for _, p := range counters {
		counterIDs[p.ID] = true
	}
	for productID := range sums {
		if !counterIDs[productID] {
			drifted++
			lg.Sugar().Warnw("ledger references missing product", "product_id", productID)
		}
	}

	lg.Sugar().Infow("reconciliation finished",
		"products", len(counters),
		"drifted", drifted,
		"repaired", repaired,
	)

	if drifted > repaired {
		os.Exit(1)
	}
}

// loadCounters 读取全部商品的库存计数器
func loadCounters(ctx context.Context, db *database.DB) ([]productCounter, error) {
	rows, err := db.DB.QueryContext(ctx, "SELECT id, sku, stock FROM products")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counters []productCounter
	for rows.Next() {
		var p productCounter
		if err := rows.Scan(&p.ID, &p.SKU, &p.Stock); err != nil {
			return nil, err
		}
		counters = append(counters, p)
	}

	return counters, rows.Err()
}

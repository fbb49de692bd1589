package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teamshop/stock-ledger/internal/api"
	"github.com/teamshop/stock-ledger/internal/cache"
	"github.com/teamshop/stock-ledger/internal/config"
	"github.com/teamshop/stock-ledger/internal/database"
	"github.com/teamshop/stock-ledger/internal/limiter"
	"github.com/teamshop/stock-ledger/internal/logger"
	mw "github.com/teamshop/stock-ledger/internal/middleware"
	"github.com/teamshop/stock-ledger/internal/repo"
	"github.com/teamshop/stock-ledger/internal/resp"
	"github.com/teamshop/stock-ledger/internal/service"
)

// AppDependencies 包含应用的所有依赖
type AppDependencies struct {
	StockHandler    *api.StockHandler
	MovementHandler *api.MovementHandler
	AlertHandler    *api.AlertHandler
	JWTService      service.JWTService
	WriteLimiter    limiter.Limiter
}

// cacheComponents 缓存相关组件。
// redisCache为nil表示Redis不可用，镜像和限流都降级关闭。
type cacheComponents struct {
	store  cache.Cache
	mirror *cache.StockMirror
	redis  *cache.RedisCache
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %v", err)
	}

	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移。
// 迁移在HTTP服务器启动前完成，保证处理请求时表结构已就绪。
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	migrationsDir := cfg.Migrations.Dir
	lg.Sugar().Infow("using migrations directory", "path", migrationsDir)

	if err := db.RunMigrations(migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %v", err)
	}

	return db, nil
}

// initCache 初始化缓存、库存镜像和Redis连接
func initCache(cfg *config.Config, lg *zap.Logger) *cacheComponents {
	components := &cacheComponents{}

	if !cfg.Cache.Enabled {
		components.store = cache.NewNullCache()
		lg.Sugar().Infow("cache disabled")
		return components
	}

	switch cfg.Cache.Type {
	case "redis":
		redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		redisCache, err := cache.NewRedisCache(redisAddr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lg.Sugar().Warnw("failed to connect to Redis, falling back to memory cache", "error", err)
			components.store = cache.NewMemoryCache()
			lg.Sugar().Infow("cache enabled", "type", "memory (fallback)", "ttl", cfg.Cache.TTL)
		} else {
			components.store = redisCache
			components.redis = redisCache
			components.mirror = cache.NewStockMirror(redisCache.Client())
			lg.Sugar().Infow("cache enabled", "type", "redis", "addr", redisAddr, "ttl", cfg.Cache.TTL)
		}
	case "memory":
		components.store = cache.NewMemoryCache()
		lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
	default:
		lg.Sugar().Warnw("unknown cache type, using memory cache", "type", cfg.Cache.Type)
		components.store = cache.NewMemoryCache()
		lg.Sugar().Infow("cache enabled", "type", "memory (default)", "ttl", cfg.Cache.TTL)
	}

	return components
}

// initLimiter 初始化写操作限流器，Redis不可用时关闭限流
func initLimiter(cfg *config.Config, components *cacheComponents, lg *zap.Logger) limiter.Limiter {
	if !cfg.Limiter.Enabled {
		return nil
	}
	if components.redis == nil {
		lg.Sugar().Warnw("limiter enabled but Redis unavailable, rate limiting disabled")
		return nil
	}

	writeLimiter, err := limiter.NewTokenBucketLimiter(components.redis.Client(), &limiter.Config{
		Rate:      cfg.Limiter.Rate,
		Window:    cfg.Limiter.Window,
		Burst:     cfg.Limiter.Burst,
		KeyPrefix: "limiter:stock",
	})
	if err != nil {
		lg.Sugar().Warnw("failed to create limiter, rate limiting disabled", "error", err)
		return nil
	}

	lg.Sugar().Infow("write limiter enabled",
		"rate", cfg.Limiter.Rate, "burst", cfg.Limiter.Burst, "window", cfg.Limiter.Window)
	return writeLimiter
}

// initDependencies 初始化应用依赖（仓储、服务、处理器）
func initDependencies(cfg *config.Config, db *database.DB, components *cacheComponents, lg *zap.Logger) *AppDependencies {
	// 依赖注入链：仓储 -> 服务 -> API处理器
	baseStockRepo := repo.NewStockRepository(db.DB)
	movementRepo := repo.NewMovementRepository(db.DB)

	var stockRepo repo.StockRepository
	if cfg.Cache.Enabled {
		stockRepo = repo.NewCachedStockRepository(baseStockRepo, components.store, components.mirror, cfg.Cache.TTL)
	} else {
		stockRepo = baseStockRepo
	}

	stockService := service.NewStockService(stockRepo, movementRepo, cfg.Stock.LowStockThreshold, cfg.Stock.MovementPageSize)
	alertService := service.NewAlertService(stockRepo, cfg.Stock.LowStockThreshold, cfg.Stock.AlertCacheTTL)
	jwtService := service.NewJWTService(cfg, lg)

	return &AppDependencies{
		StockHandler:    api.NewStockHandler(stockService, lg),
		MovementHandler: api.NewMovementHandler(stockService, lg),
		AlertHandler:    api.NewAlertHandler(alertService, stockService, lg),
		JWTService:      jwtService,
		WriteLimiter:    initLimiter(cfg, components, lg),
	}
}

// setupRoutes 设置路由和中间件
func setupRoutes(cfg *config.Config, deps *AppDependencies, lg *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		reqID := mw.RequestIDFromContext(r.Context())
		data := map[string]any{
			"status":  "ok",
			"version": cfg.App.Version,
		}
		resp.OK(w, &data, reqID, "")
	})

	authed := mw.AuthMiddleware(deps.JWTService, lg)
	admin := mw.RequireAdmin(lg)

	// 写操作限流，按认证用户限流，未认证请求按客户端IP
	limited := func(next http.Handler) http.Handler { return next }
	if deps.WriteLimiter != nil {
		keyGen := func(r *http.Request) string {
			if user := mw.UserFromContext(r.Context()); user != nil {
				return fmt.Sprintf("user:%d", user.ID)
			}
			return limiter.IPKeyGenerator(r)
		}
		limited = limiter.Middleware(deps.WriteLimiter, keyGen, lg)
	}

	// 写接口的处理链：认证 -> (管理员) -> 限流 -> 处理器
	createProduct := authed(admin(limited(http.HandlerFunc(deps.StockHandler.CreateProduct))))
	increaseStock := authed(limited(http.HandlerFunc(deps.StockHandler.IncreaseStock)))
	decreaseStock := authed(limited(http.HandlerFunc(deps.StockHandler.DecreaseStock)))
	writeOffStock := authed(limited(http.HandlerFunc(deps.StockHandler.WriteOffStock)))
	returnStock := authed(limited(http.HandlerFunc(deps.StockHandler.ReturnStock)))
	setStock := authed(admin(limited(http.HandlerFunc(deps.StockHandler.SetStock))))
	transferStock := authed(admin(limited(http.HandlerFunc(deps.StockHandler.TransferStock))))
	bulkUpdate := authed(admin(limited(http.HandlerFunc(deps.StockHandler.BulkUpdateStock))))

	// 流水属于审计面，读接口也要求认证；告警列表面向库存管理
	listMovements := authed(http.HandlerFunc(deps.MovementHandler.ListByProduct))
	listByPeriod := authed(http.HandlerFunc(deps.MovementHandler.ListByPeriod))
	stockAlerts := authed(admin(http.HandlerFunc(deps.AlertHandler.GetStockAlerts)))
	lowStock := authed(admin(http.HandlerFunc(deps.AlertHandler.GetLowStockProducts)))
	outOfStock := authed(admin(http.HandlerFunc(deps.AlertHandler.GetOutOfStockProducts)))

	// 商品创建
	mux.HandleFunc("/api/v1/products", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			createProduct.ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// 商品详情和库存操作，按路径后缀分发
	mux.HandleFunc("/api/v1/products/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/stock/check"):
			requireMethod(w, r, http.MethodGet, http.HandlerFunc(deps.StockHandler.CheckStock))
		case strings.HasSuffix(path, "/stock/movements"):
			requireMethod(w, r, http.MethodGet, listMovements)
		case strings.HasSuffix(path, "/stock/increase"):
			requireMethod(w, r, http.MethodPost, increaseStock)
		case strings.HasSuffix(path, "/stock/decrease"):
			requireMethod(w, r, http.MethodPost, decreaseStock)
		case strings.HasSuffix(path, "/stock/write-off"):
			requireMethod(w, r, http.MethodPost, writeOffStock)
		case strings.HasSuffix(path, "/stock/return"):
			requireMethod(w, r, http.MethodPost, returnStock)
		case strings.HasSuffix(path, "/stock/set"):
			requireMethod(w, r, http.MethodPut, setStock)
		case strings.HasSuffix(path, "/stock/transfer"):
			requireMethod(w, r, http.MethodPost, transferStock)
		case strings.HasSuffix(path, "/stock"):
			requireMethod(w, r, http.MethodGet, http.HandlerFunc(deps.StockHandler.GetStock))
		default:
			requireMethod(w, r, http.MethodGet, http.HandlerFunc(deps.StockHandler.GetProduct))
		}
	})

	// 批量库存查询
	mux.HandleFunc("/api/v1/stock", func(w http.ResponseWriter, r *http.Request) {
		requireMethod(w, r, http.MethodGet, http.HandlerFunc(deps.StockHandler.GetMultipleStocks))
	})

	// 流水、告警和批量盘点
	mux.Handle("/api/v1/stock/movements", methodHandler(http.MethodGet, listByPeriod))
	mux.Handle("/api/v1/stock/alerts", methodHandler(http.MethodGet, stockAlerts))
	mux.Handle("/api/v1/stock/low", methodHandler(http.MethodGet, lowStock))
	mux.Handle("/api/v1/stock/out-of-stock", methodHandler(http.MethodGet, outOfStock))
	mux.Handle("/api/v1/stock/bulk", methodHandler(http.MethodPost, bulkUpdate))

	// 构建中间件链：请求进入时执行顺序为 access log → CORS → timeout → recovery → request ID
	handler := mw.RequestID(mux)
	handler = mw.Recovery(lg)(handler)
	handler = mw.Timeout(cfg.App.RequestTimeout)(handler)
	handler = mw.CORS(mw.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	})(handler)
	handler = mw.AccessLog(lg)(handler)

	return handler
}

// requireMethod 校验HTTP方法后分发
func requireMethod(w http.ResponseWriter, r *http.Request, method string, next http.Handler) {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	next.ServeHTTP(w, r)
}

// methodHandler 包装单方法路由
func methodHandler(method string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireMethod(w, r, method, next)
	})
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			lg.Sugar().Fatalw("server error", "err", err)
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
}

// main 为应用入口，协调各个组件的初始化和启动
func main() {
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}

	db, err := initDatabase(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize database", "err", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database connection", "err", err)
		}
	}()

	components := initCache(cfg, lg)
	deps := initDependencies(cfg, db, components, lg)
	handler := setupRoutes(cfg, deps, lg)

	startServer(cfg, handler, lg)
}

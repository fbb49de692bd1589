// Package config 提供基于环境变量的配置加载。
// 支持本地开发时通过 .env 文件覆盖（godotenv），生产环境直接读取环境变量。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 应用基础配置
type AppConfig struct {
	Name            string
	Env             string // dev / test / prod
	Version         string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string // debug / info / warn / error
	Encoding string // json / console
}

// DatabaseConfig MySQL连接配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig Redis连接配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig 缓存开关与TTL
type CacheConfig struct {
	Enabled bool
	Type    string // redis / memory
	TTL     time.Duration
}

// JWTConfig 令牌校验配置。
// 令牌由外部认证服务签发，本服务与其共享签名密钥。
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// MigrationsConfig 迁移文件目录
type MigrationsConfig struct {
	Dir string
}

// StockConfig 库存业务参数
type StockConfig struct {
	LowStockThreshold int           // 低库存水位，stock<=该值且>0 触发告警
	MovementPageSize  int           // 流水查询默认分页大小
	AlertCacheTTL     time.Duration // 告警列表的重算间隔
}

// LimiterConfig 写操作限流配置（令牌桶）
type LimiterConfig struct {
	Enabled bool
	Rate    int64         // 每窗口生成令牌数
	Burst   int64         // 桶容量
	Window  time.Duration // 窗口大小
}

// Config 聚合全部配置
type Config struct {
	App        AppConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Migrations MigrationsConfig
	Stock      StockConfig
	Limiter    LimiterConfig
}

// Load 从环境变量加载配置并做基本校验
func Load() (*Config, error) {
	// .env 不存在不是错误，生产环境通常不带该文件
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:            getEnv("APP_NAME", "stock-ledger"),
			Env:             getEnv("APP_ENV", "dev"),
			Version:         getEnv("APP_VERSION", "0.1.0"),
			Port:            getEnvInt("APP_PORT", 8080),
			RequestTimeout:  getEnvDuration("APP_REQUEST_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "stock_ledger"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "127.0.0.1"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			Type:    getEnv("CACHE_TYPE", "redis"),
			TTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret:         getEnv("JWT_SECRET", ""),
			Issuer:         getEnv("JWT_ISSUER", "teamshop-auth"),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Request-ID"}),
		},
		Migrations: MigrationsConfig{
			Dir: getEnv("MIGRATIONS_DIR", "migrations"),
		},
		Stock: StockConfig{
			LowStockThreshold: getEnvInt("STOCK_LOW_THRESHOLD", 10),
			MovementPageSize:  getEnvInt("STOCK_MOVEMENT_PAGE_SIZE", 50),
			AlertCacheTTL:     getEnvDuration("STOCK_ALERT_CACHE_TTL", 30*time.Second),
		},
		Limiter: LimiterConfig{
			Enabled: getEnvBool("LIMITER_ENABLED", false),
			Rate:    int64(getEnvInt("LIMITER_RATE", 50)),
			Burst:   int64(getEnvInt("LIMITER_BURST", 100)),
			Window:  getEnvDuration("LIMITER_WINDOW", time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid APP_PORT: %d", c.App.Port)
	}
	if c.JWT.Secret == "" {
		if c.App.Env == "prod" || c.App.Env == "production" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		// 开发环境给一个固定默认值，方便本地联调
		c.JWT.Secret = "dev-only-secret"
	}
	if c.Stock.LowStockThreshold < 0 {
		return fmt.Errorf("STOCK_LOW_THRESHOLD cannot be negative")
	}
	if c.Stock.MovementPageSize <= 0 {
		return fmt.Errorf("STOCK_MOVEMENT_PAGE_SIZE must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

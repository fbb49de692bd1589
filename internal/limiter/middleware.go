// Package limiter 限流中间件实现
package limiter

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/teamshop/stock-ledger/internal/resp"
)

// KeyGenerator 根据请求生成限流Key
type KeyGenerator func(r *http.Request) string

// IPKeyGenerator 基于客户端IP的Key生成器
func IPKeyGenerator(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Middleware 创建限流中间件。
// 限流服务自身故障时放行请求，限流只作过载保护，不能成为单点。
func Middleware(l Limiter, keyGen KeyGenerator, logger *zap.Logger) func(http.Handler) http.Handler {
	if keyGen == nil {
		keyGen = IPKeyGenerator
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()

			result, err := l.Allow(ctx, keyGen(r))
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			if result.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(result.RetryAfter.Seconds()), 10))
			}

			if !result.Allowed {
				resp.Error(w, http.StatusTooManyRequests, resp.CodeRateLimited,
					"too many requests, please retry later", "", "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

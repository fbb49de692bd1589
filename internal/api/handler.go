// Package api 提供库存台账的HTTP API处理器实现。
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teamshop/stock-ledger/internal/domain"
	"github.com/teamshop/stock-ledger/internal/middleware"
	"github.com/teamshop/stock-ledger/internal/resp"
)

// productIDFromPath 从URL路径中提取商品ID。
// 路径形如 /api/v1/products/{id}/stock/...，商品ID位于第5段。
func productIDFromPath(r *http.Request) (int64, error) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 {
		return 0, errors.New("invalid product ID")
	}

	id, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid product ID")
	}

	return id, nil
}

// currentActor 从请求上下文中获取操作用户ID。
// 返回0表示未认证，写接口必须拒绝。
func currentActor(r *http.Request) int64 {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		return 0
	}
	return user.ID
}

// writeDomainError 将领域错误映射为统一的HTTP响应。
// 未识别的错误按内部错误处理并记录日志。
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error, action, reqID string) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "product not found", reqID, "")
	case errors.Is(err, domain.ErrInsufficientStock):
		resp.Error(w, http.StatusConflict, resp.CodeConflict, "insufficient stock", reqID, "")
	case errors.Is(err, domain.ErrSKUExists):
		resp.Error(w, http.StatusConflict, resp.CodeConflict, "sku already exists", reqID, "")
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrNegativeStock),
		errors.Is(err, domain.ErrMissingActor),
		errors.Is(err, domain.ErrInvalidPeriod):
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
	default:
		logger.Error(action+" failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, action+" failed", reqID, "")
	}
}

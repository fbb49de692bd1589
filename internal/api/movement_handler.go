package api

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/teamshop/stock-ledger/internal/domain"
	"github.com/teamshop/stock-ledger/internal/middleware"
	"github.com/teamshop/stock-ledger/internal/resp"
	"github.com/teamshop/stock-ledger/internal/service"
)

// MovementHandler 库存流水查询的HTTP处理器。
// 流水是只读的审计记录，没有写接口。
type MovementHandler struct {
	stockService service.StockService
	logger       *zap.Logger
}

// NewMovementHandler 创建流水处理器实例
func NewMovementHandler(stockService service.StockService, logger *zap.Logger) *MovementHandler {
	return &MovementHandler{
		stockService: stockService,
		logger:       logger,
	}
}

// ListByProduct 按商品查询流水，最新的在前
// GET /api/v1/products/{id}/stock/movements?limit=50
func (h *MovementHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	productID, err := productIDFromPath(r)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid limit", reqID, "")
			return
		}
	}

	movements, err := h.stockService.GetStockMovements(r.Context(), productID, limit)
	if err != nil {
		writeDomainError(w, h.logger, err, "list stock movements", reqID)
		return
	}

	resp.OK(w, movements, reqID, "")
}

// ListByPeriod 按时间段查询流水
// GET /api/v1/stock/movements?start=2026-08-01T00:00:00Z&end=2026-09-01T00:00:00Z&product_id=1
// 时间为RFC3339格式，区间左闭右开；product_id可选
func (h *MovementHandler) ListByPeriod(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())
	query := r.URL.Query()

	req := &domain.MovementPeriodRequest{}

	startStr := query.Get("start")
	endStr := query.Get("end")
	if startStr == "" || endStr == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "start and end are required", reqID, "")
		return
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid start time", reqID, "")
		return
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid end time", reqID, "")
		return
	}
	req.Start = start
	req.End = end

	if productIDStr := query.Get("product_id"); productIDStr != "" {
		productID, err := strconv.ParseInt(productIDStr, 10, 64)
		if err != nil || productID <= 0 {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID", reqID, "")
			return
		}
		req.ProductID = &productID
	}

	movements, err := h.stockService.GetStockMovementsByPeriod(r.Context(), req)
	if err != nil {
		writeDomainError(w, h.logger, err, "list stock movements by period", reqID)
		return
	}

	resp.OK(w, movements, reqID, "")
}

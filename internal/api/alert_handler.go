package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/teamshop/stock-ledger/internal/middleware"
	"github.com/teamshop/stock-ledger/internal/resp"
	"github.com/teamshop/stock-ledger/internal/service"
)

// AlertHandler 库存告警查询的HTTP处理器
type AlertHandler struct {
	alertService service.AlertService
	stockService service.StockService
	logger       *zap.Logger
}

// NewAlertHandler 创建告警处理器实例
func NewAlertHandler(alertService service.AlertService, stockService service.StockService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		stockService: stockService,
		logger:       logger,
	}
}

// GetStockAlerts 获取告警列表，零库存在前，其余按库存升序
// GET /api/v1/stock/alerts
// 需要认证
func (h *AlertHandler) GetStockAlerts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	alerts, err := h.alertService.GetStockAlerts(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err, "get stock alerts", reqID)
		return
	}

	resp.OK(w, alerts, reqID, "")
}

// GetLowStockProducts 获取低库存商品列表，按库存升序
// GET /api/v1/stock/low
// 需要认证
func (h *AlertHandler) GetLowStockProducts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	products, err := h.stockService.GetLowStockProducts(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err, "get low stock products", reqID)
		return
	}

	resp.OK(w, products, reqID, "")
}

// GetOutOfStockProducts 获取零库存商品列表
// GET /api/v1/stock/out-of-stock
// 需要认证
func (h *AlertHandler) GetOutOfStockProducts(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	products, err := h.stockService.GetOutOfStockProducts(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err, "get out of stock products", reqID)
		return
	}

	resp.OK(w, products, reqID, "")
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teamshop/stock-ledger/internal/domain"
	"github.com/teamshop/stock-ledger/internal/middleware"
	"github.com/teamshop/stock-ledger/internal/resp"
	"github.com/teamshop/stock-ledger/internal/service"
)

// StockHandler 库存相关的HTTP处理器
type StockHandler struct {
	stockService service.StockService
	logger       *zap.Logger
}

// NewStockHandler 创建库存处理器实例
func NewStockHandler(stockService service.StockService, logger *zap.Logger) *StockHandler {
	return &StockHandler{
		stockService: stockService,
		logger:       logger,
	}
}

// CreateProduct 创建商品并记录初始库存
// POST /api/v1/products
// 需要认证
func (h *StockHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentActor(r)
	if actor == 0 {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	var req domain.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	product, err := h.stockService.CreateProduct(r.Context(), &req, actor)
	if err != nil {
		writeDomainError(w, h.logger, err, "create product", reqID)
		return
	}

	h.logger.Info("product created",
		zap.String("request_id", reqID),
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Int("initial_stock", product.Stock),
	)
	resp.OK(w, product, reqID, "")
}

// GetProduct 获取商品详情
// GET /api/v1/products/{id}
func (h *StockHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	productID, err := productIDFromPath(r)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	product, err := h.stockService.GetProduct(r.Context(), productID)
	if err != nil {
		writeDomainError(w, h.logger, err, "get product", reqID)
		return
	}

	resp.OK(w, product, reqID, "")
}

// GetStock 获取当前库存
// GET /api/v1/products/{id}/stock
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	productID, err := productIDFromPath(r)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	stock, err := h.stockService.GetStock(r.Context(), productID)
	if err != nil {
		writeDomainError(w, h.logger, err, "get stock", reqID)
		return
	}

	result := map[string]any{
		"product_id": productID,
		"stock":      stock,
	}
	resp.OK(w, &result, reqID, "")
}

// CheckStock 检查库存是否满足数量要求
// GET /api/v1/products/{id}/stock/check?quantity=10
func (h *StockHandler) CheckStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	productID, err := productIDFromPath(r)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	quantityStr := r.URL.Query().Get("quantity")
	if quantityStr == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "quantity is required", reqID, "")
		return
	}
	quantity, err := strconv.Atoi(quantityStr)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid quantity", reqID, "")
		return
	}

	available, err := h.stockService.CheckStock(r.Context(), productID, quantity)
	if err != nil {
		writeDomainError(w, h.logger, err, "check stock", reqID)
		return
	}

	result := map[string]any{
		"product_id": productID,
		"quantity":   quantity,
		"available":  available,
	}
	resp.OK(w, &result, reqID, "")
}

// GetMultipleStocks 批量获取库存
// GET /api/v1/stock?ids=1,2,3
// 不存在的商品不出现在结果中
func (h *StockHandler) GetMultipleStocks(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	idsStr := r.URL.Query().Get("ids")
	if idsStr == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "ids is required", reqID, "")
		return
	}

	var productIDs []int64
	for _, part := range strings.Split(idsStr, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid product ID in ids", reqID, "")
			return
		}
		productIDs = append(productIDs, id)
	}

	stocks, err := h.stockService.GetMultipleStocks(r.Context(), productIDs)
	if err != nil {
		writeDomainError(w, h.logger, err, "get stocks", reqID)
		return
	}

	resp.OK(w, stocks, reqID, "")
}

// IncreaseStock 采购入库
// POST /api/v1/products/{id}/stock/increase
// 需要认证
func (h *StockHandler) IncreaseStock(w http.ResponseWriter, r *http.Request) {
	h.applyMovement(w, r, "increase stock", func(ctx *movementContext) (*domain.StockMovement, error) {
		var req domain.IncreaseStockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errInvalidBody
		}
		return h.stockService.IncreaseStock(r.Context(), ctx.productID, &req, ctx.actor)
	})
}

// DecreaseStock 订单出库
// POST /api/v1/products/{id}/stock/decrease
// 需要认证；库存不足时返回409且不产生流水
func (h *StockHandler) DecreaseStock(w http.ResponseWriter, r *http.Request) {
	h.applyMovement(w, r, "decrease stock", func(ctx *movementContext) (*domain.StockMovement, error) {
		var req domain.DecreaseStockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errInvalidBody
		}
		return h.stockService.DecreaseStock(r.Context(), ctx.productID, &req, ctx.actor)
	})
}

// WriteOffStock 报损出库
// POST /api/v1/products/{id}/stock/write-off
// 需要认证
func (h *StockHandler) WriteOffStock(w http.ResponseWriter, r *http.Request) {
	h.applyMovement(w, r, "write off stock", func(ctx *movementContext) (*domain.StockMovement, error) {
		var req domain.WriteOffStockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errInvalidBody
		}
		return h.stockService.WriteOffStock(r.Context(), ctx.productID, &req, ctx.actor)
	})
}

// ReturnStock 退货入库
// POST /api/v1/products/{id}/stock/return
// 需要认证
func (h *StockHandler) ReturnStock(w http.ResponseWriter, r *http.Request) {
	h.applyMovement(w, r, "return stock", func(ctx *movementContext) (*domain.StockMovement, error) {
		var req domain.ReturnStockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errInvalidBody
		}
		return h.stockService.ReturnStock(r.Context(), ctx.productID, &req, ctx.actor)
	})
}

// SetStock 盘点校正到绝对值
// PUT /api/v1/products/{id}/stock/set
// 需要管理员权限
func (h *StockHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	h.applyMovement(w, r, "set stock", func(ctx *movementContext) (*domain.StockMovement, error) {
		var req domain.SetStockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errInvalidBody
		}
		return h.stockService.SetStock(r.Context(), ctx.productID, &req, ctx.actor)
	})
}

// TransferStock 库位转移，写入一出一入两条流水
// POST /api/v1/products/{id}/stock/transfer
// 需要管理员权限
func (h *StockHandler) TransferStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentActor(r)
	if actor == 0 {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	productID, err := productIDFromPath(r)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	var req domain.TransferStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	movements, err := h.stockService.TransferStock(r.Context(), productID, &req, actor)
	if err != nil {
		writeDomainError(w, h.logger, err, "transfer stock", reqID)
		return
	}

	resp.OK(w, movements, reqID, "")
}

// BulkUpdateStock 批量盘点
// POST /api/v1/stock/bulk
// 需要管理员权限；各项独立提交，失败项记录在结果中
func (h *StockHandler) BulkUpdateStock(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentActor(r)
	if actor == 0 {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	var req domain.BulkUpdateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	result, err := h.stockService.BulkUpdateStock(r.Context(), &req, actor)
	if err != nil {
		writeDomainError(w, h.logger, err, "bulk update stock", reqID)
		return
	}

	h.logger.Info("bulk stock update finished",
		zap.String("request_id", reqID),
		zap.Int64("actor", actor),
		zap.Int("updated", len(result.Updated)),
		zap.Int("failed", len(result.Errors)),
	)
	resp.OK(w, result, reqID, "")
}

// movementContext 单条流水写接口的公共输入
type movementContext struct {
	productID int64
	actor     int64
}

// errInvalidBody 请求体解析失败的内部标记
var errInvalidBody = &invalidBodyError{}

type invalidBodyError struct{}

func (e *invalidBodyError) Error() string { return "invalid request body" }

// applyMovement 封装单条流水写接口的公共流程：认证、路径解析、调用服务、统一响应。
func (h *StockHandler) applyMovement(w http.ResponseWriter, r *http.Request, action string,
	apply func(ctx *movementContext) (*domain.StockMovement, error)) {
	reqID := middleware.RequestIDFromContext(r.Context())

	actor := currentActor(r)
	if actor == 0 {
		resp.Error(w, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, "")
		return
	}

	productID, err := productIDFromPath(r)
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		return
	}

	movement, err := apply(&movementContext{productID: productID, actor: actor})
	if err != nil {
		if _, ok := err.(*invalidBodyError); ok {
			h.logger.Warn("invalid request body", zap.String("request_id", reqID))
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
			return
		}
		writeDomainError(w, h.logger, err, action, reqID)
		return
	}

	h.logger.Info("stock movement applied",
		zap.String("request_id", reqID),
		zap.Int64("product_id", productID),
		zap.Int64("actor", actor),
		zap.Int("change", movement.Change),
		zap.String("source", string(movement.Source)),
		zap.Int("new_stock", movement.NewStock),
	)
	resp.OK(w, movement, reqID, "")
}

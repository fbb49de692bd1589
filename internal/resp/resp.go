// Package resp 提供统一的HTTP JSON响应封装。
// 所有API出口都经过 OK/Error，保证响应结构一致并携带请求ID便于排查。
package resp

import (
	"encoding/json"
	"net/http"
)

// Code 业务响应码，0表示成功
type Code int

const (
	CodeOK            Code = 0
	CodeInvalidParam  Code = 1001 // 参数错误
	CodeUnauthorized  Code = 1002 // 未认证或令牌无效
	CodeNotFound      Code = 1003 // 资源不存在
	CodeConflict      Code = 1004 // 与当前状态冲突（如库存不足）
	CodeTimeout       Code = 1005 // 请求超时
	CodeRateLimited   Code = 1006 // 触发限流
	CodeInternalError Code = 2000 // 服务内部错误
)

// HTTPStatusFromCode 返回业务码对应的默认HTTP状态码
func HTTPStatusFromCode(code Code) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Body 统一响应体
type Body struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// OK 写入成功响应
func OK(w http.ResponseWriter, data any, requestID, traceID string) {
	write(w, http.StatusOK, &Body{
		Code:      CodeOK,
		Message:   "ok",
		Data:      data,
		RequestID: requestID,
		TraceID:   traceID,
	})
}

// Error 写入失败响应
func Error(w http.ResponseWriter, status int, code Code, message, requestID, traceID string) {
	write(w, status, &Body{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		TraceID:   traceID,
	})
}

func write(w http.ResponseWriter, status int, body *Body) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// 编码失败时响应头已写出，只能放弃；body均为可序列化的简单结构
	_ = json.NewEncoder(w).Encode(body)
}

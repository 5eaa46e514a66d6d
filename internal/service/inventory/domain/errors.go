// internal/service/inventory/domain/errors.go
package domain

import "errors"

var (
	// ErrProductNotFound 商品在两个存储里都不存在，对该商品是硬失败。
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock 库存不足，预留被拒绝。这是正常的业务结果，不是系统错误。
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrMissingRequestID = errors.New("order event is missing requestId")
	ErrMissingOrderID   = errors.New("order event is missing orderId")
	ErrInvalidQuantity  = errors.New("order item quantity must be a positive integer")
)

package book

import "errors"

var (
	ErrCapacityExhausted = errors.New("order arena is full")
	ErrDuplicateOrderID  = errors.New("an order with this id is already live")
	ErrInvalidQuantity   = errors.New("order quantity must be positive")
	ErrInvalidParam      = errors.New("the param is invalid")
	ErrNotFound          = errors.New("not found")
	ErrTimeout           = errors.New("timeout")
	ErrShutdown          = errors.New("order book is shutting down")
	ErrSequenceGap       = errors.New("sequence gap detected in log stream")
)

package book

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateOrderID = errors.New("duplicate order id")
	ErrInvalidQuantity  = errors.New("invalid quantity")
)

package models

import "time"

type OrderKind string

const (
	OrderMarket OrderKind = "MARKET"
	OrderLimit  OrderKind = "LIMIT"
)

type OrderStatus string

const (
	OrderComplete OrderStatus = "COMPLETE"
	OrderOpen     OrderStatus = "OPEN"
	OrderRejected OrderStatus = "REJECTED"
)

type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Quantity   float64   `json:"quantity"`
	Kind       OrderKind `json:"orderKind"`
	LimitPrice float64   `json:"limitPrice,omitempty"`
}

type OrderRecord struct {
	ID       string      `json:"id"`
	Time     time.Time   `json:"timestamp"`
	Symbol   string      `json:"symbol"`
	Side     Side        `json:"side"`
	Quantity float64     `json:"quantity"`
	Price    float64     `json:"price"`
	Status   OrderStatus `json:"status"`
	Kind     OrderKind   `json:"orderKind"`
}

package journal

import (
	"time"

	"order-router/internal/order"
)

// EventType 表示流水事件类型。
type EventType string

const (
	EventOrder EventType = "order"
	EventHedge EventType = "hedge"
	EventError EventType = "error"
)

// Event 封装通用流水事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OrderPayload 记录一次下单的请求与结算后的展示。
type OrderPayload struct {
	Venue     string  `json:"venue"`
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"`
	OrderName string  `json:"order_name,omitempty"`
	OrderID   string  `json:"order_id,omitempty"`
	Label     string  `json:"label"`
	Value     string  `json:"value"`
	Price     *string `json:"price,omitempty"`
	Leverage  *int64  `json:"leverage,omitempty"`
}

// HedgePayload 记录对冲状态机里的关键节点。
type HedgePayload struct {
	Event   string                 `json:"event"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// NewOrderPayload 由订单要素与结算展示拼装流水载荷。
func NewOrderPayload(spec *order.Spec, res order.Result, display order.Display) OrderPayload {
	payload := OrderPayload{
		Venue:     string(spec.Venue),
		Symbol:    spec.Symbol(),
		Action:    string(spec.Action),
		OrderName: spec.OrderName,
		OrderID:   res.OrderID,
		Label:     display.Label,
		Value:     display.Value,
		Leverage:  spec.Leverage,
	}
	if spec.Price != nil {
		s := order.FormatAmount(*spec.Price)
		payload.Price = &s
	}
	return payload
}

package server

import (
	"strings"

	"order-router/internal/hedge"
	"order-router/internal/order"
)

// OrderPayload 为入站订单信号的线格式。
// 字段名与信号源模板保持一致，side 使用 "entry/sell" 这类斜杠语法。
type OrderPayload struct {
	Password     string   `json:"password,omitempty"`
	Exchange     string   `json:"exchange"`
	Base         string   `json:"base"`
	Quote        string   `json:"quote"`
	Side         string   `json:"side"`
	Amount       *float64 `json:"amount,omitempty"`
	Percent      *float64 `json:"percent,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Leverage     *int64   `json:"leverage,omitempty"`
	ContractSize *float64 `json:"contract_size,omitempty"`
	KISNumber    int      `json:"kis_number,omitempty"`
	OrderName    string   `json:"order_name,omitempty"`
}

// Spec 把线格式转换为内部订单要素。
// 永续合约信号的 quote 带 ".P" 后缀（信号源的永续标记），转换时剥离并标记为合约。
func (p *OrderPayload) Spec() (*order.Spec, error) {
	v, err := order.ParseVenue(p.Exchange)
	if err != nil {
		return nil, err
	}

	quote := p.Quote
	class := order.ClassSpot
	if v.IsStock() {
		class = order.ClassStock
	} else if stripped, ok := strings.CutSuffix(quote, ".P"); ok {
		quote = stripped
		class = order.ClassFutures
	}

	action, err := order.ParseAction(p.Side)
	if err != nil {
		return nil, err
	}

	spec := &order.Spec{
		Venue:        v,
		Class:        class,
		Base:         strings.ToUpper(p.Base),
		Quote:        strings.ToUpper(quote),
		Action:       action,
		Amount:       p.Amount,
		Percent:      p.Percent,
		Price:        p.Price,
		ContractSize: p.ContractSize,
		Leverage:     p.Leverage,
		KISSlot:      p.KISNumber,
		OrderName:    p.OrderName,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return spec, nil
}

// HedgePayload 为入站对冲信号的线格式。
type HedgePayload struct {
	Password string   `json:"password,omitempty"`
	Exchange string   `json:"exchange"`
	Base     string   `json:"base"`
	Quote    string   `json:"quote"`
	Amount   *float64 `json:"amount,omitempty"`
	Leverage *int64   `json:"leverage,omitempty"`
	Hedge    string   `json:"hedge"`
}

// Request 把线格式转换为对冲请求。
// exchange 缺省时留空，由上层套用配置的默认合约场所。
func (p *HedgePayload) Request() (hedge.Request, error) {
	var v order.Venue
	if p.Exchange != "" {
		parsed, err := order.ParseVenue(p.Exchange)
		if err != nil {
			return hedge.Request{}, err
		}
		v = parsed
	}

	var mode hedge.Mode
	switch strings.ToUpper(p.Hedge) {
	case "ON":
		mode = hedge.ModeOn
	case "OFF":
		mode = hedge.ModeOff
	default:
		return hedge.Request{}, &order.ValidationError{Reason: "hedge 字段必须为 ON 或 OFF"}
	}

	return hedge.Request{
		Venue:    v,
		Base:     strings.ToUpper(p.Base),
		Quote:    strings.ToUpper(p.Quote),
		Amount:   p.Amount,
		Leverage: p.Leverage,
		Mode:     mode,
	}, nil
}

package venue

import (
	"context"
	"errors"
	"testing"

	ccxt "github.com/ccxt/ccxt/go/v4"

	"order-router/internal/order"
)

func TestMarketEntry_ContractsSubmittedAsCount(t *testing.T) {
	client := &mockMarketClient{}
	adapter := NewCCXTAdapter(order.VenueOKX, order.ClassFutures, client, nil)

	spec := &order.Spec{
		Venue:        order.VenueOKX,
		Class:        order.ClassFutures,
		Base:         "BTC",
		Quote:        "USDT",
		Action:       order.ActionEntrySell,
		Amount:       order.FloatPtr(105),
		ContractSize: order.FloatPtr(10),
	}

	if _, err := adapter.MarketEntry(context.Background(), spec); err != nil {
		t.Fatalf("MarketEntry returned error: %v", err)
	}

	if len(client.created) != 1 {
		t.Fatalf("expected one order, got %d", len(client.created))
	}
	got := client.created[0]
	if got.amount != 10 {
		t.Errorf("expected 10 contracts submitted, got %f", got.amount)
	}
	if got.side != "sell" {
		t.Errorf("expected sell side, got %s", got.side)
	}
}

func TestMarketEntry_PercentSizedFromBalance(t *testing.T) {
	client := &mockMarketClient{
		freeQuote: map[string]float64{"USDT": 10000},
		lastPrice: 50000,
	}
	adapter := NewCCXTAdapter(order.VenueBinance, order.ClassFutures, client, nil)

	spec := &order.Spec{
		Venue:   order.VenueBinance,
		Class:   order.ClassFutures,
		Base:    "BTC",
		Quote:   "USDT",
		Action:  order.ActionEntrySell,
		Percent: order.FloatPtr(50),
	}

	result, err := adapter.MarketEntry(context.Background(), spec)
	if err != nil {
		t.Fatalf("MarketEntry returned error: %v", err)
	}

	// 10000 * 50% / 50000 = 0.1
	if len(client.created) != 1 || absDiff(client.created[0].amount, 0.1) > 1e-9 {
		t.Fatalf("expected 0.1 submitted, got %+v", client.created)
	}
	if result.AmountByPercent == nil || absDiff(*result.AmountByPercent, 0.1) > 1e-9 {
		t.Fatalf("expected AmountByPercent=0.1, got %v", result.AmountByPercent)
	}
}

func TestMarketBuy_CostBasedUsesNotional(t *testing.T) {
	client := &mockMarketClient{}
	adapter := NewCCXTAdapter(order.VenueUpbit, order.ClassSpot, client, nil)

	spec := &order.Spec{
		Venue:  order.VenueUpbit,
		Class:  order.ClassSpot,
		Base:   "BTC",
		Quote:  "KRW",
		Action: order.ActionBuy,
		Amount: order.FloatPtr(0.5),
		Price:  order.FloatPtr(100000),
	}

	if _, err := adapter.MarketBuy(context.Background(), spec); err != nil {
		t.Fatalf("MarketBuy returned error: %v", err)
	}

	if len(client.created) != 1 || client.created[0].amount != 50000 {
		t.Fatalf("expected notional 50000 submitted, got %+v", client.created)
	}
}

func TestMarketClose_ReduceOnly(t *testing.T) {
	client := &mockMarketClient{}
	adapter := NewCCXTAdapter(order.VenueBinance, order.ClassFutures, client, nil)

	spec := &order.Spec{
		Venue:  order.VenueBinance,
		Class:  order.ClassFutures,
		Base:   "BTC",
		Quote:  "USDT",
		Action: order.ActionCloseBuy,
		Amount: order.FloatPtr(2),
	}

	if _, err := adapter.MarketClose(context.Background(), spec); err != nil {
		t.Fatalf("MarketClose returned error: %v", err)
	}

	if len(client.created) != 1 {
		t.Fatalf("expected one order, got %d", len(client.created))
	}
	if !client.created[0].reduceOnly {
		t.Errorf("expected reduceOnly param on close order")
	}
	if client.created[0].side != "buy" {
		t.Errorf("expected buy side for close/buy, got %s", client.created[0].side)
	}
}

func TestMarketEntry_WrapsNativeError(t *testing.T) {
	client := &mockMarketClient{createErr: errors.New("insufficient margin")}
	adapter := NewCCXTAdapter(order.VenueBinance, order.ClassFutures, client, nil)

	spec := &order.Spec{
		Venue:  order.VenueBinance,
		Class:  order.ClassFutures,
		Base:   "BTC",
		Quote:  "USDT",
		Action: order.ActionEntrySell,
		Amount: order.FloatPtr(1),
	}

	_, err := adapter.MarketEntry(context.Background(), spec)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Venue != order.VenueBinance || apiErr.Op != "marketEntry" {
		t.Errorf("unexpected error fields: %+v", apiErr)
	}
}

type createdOrder struct {
	symbol     string
	side       string
	amount     float64
	reduceOnly bool
}

type mockMarketClient struct {
	created   []createdOrder
	createErr error
	freeQuote map[string]float64
	lastPrice float64
	fetched   ccxt.Order
}

func (m *mockMarketClient) CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error) {
	if m.createErr != nil {
		return ccxt.Order{}, m.createErr
	}
	reduceOnly := false
	opts := ccxt.CreateMarketOrderOptionsStruct{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Params != nil {
		if v, ok := (*opts.Params)["reduceOnly"].(bool); ok {
			reduceOnly = v
		}
	}
	m.created = append(m.created, createdOrder{
		symbol:     symbol,
		side:       side,
		amount:     amount,
		reduceOnly: reduceOnly,
	})
	return ccxt.Order{}, nil
}

func (m *mockMarketClient) FetchOrder(id string, options ...ccxt.FetchOrderOptions) (ccxt.Order, error) {
	return m.fetched, nil
}

func (m *mockMarketClient) FetchTicker(symbol string, options ...ccxt.FetchTickerOptions) (ccxt.Ticker, error) {
	last := m.lastPrice
	return ccxt.Ticker{Last: &last}, nil
}

func (m *mockMarketClient) FetchBalance(params ...interface{}) (ccxt.Balances, error) {
	free := make(map[string]*float64, len(m.freeQuote))
	for code, amount := range m.freeQuote {
		v := amount
		free[code] = &v
	}
	return ccxt.Balances{Free: free}, nil
}

func (m *mockMarketClient) SetLeverage(leverage int64, options ...ccxt.SetLeverageOptions) (map[string]interface{}, error) {
	return nil, nil
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

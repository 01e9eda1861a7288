package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"order-router/internal/config"
	"order-router/internal/hedge"
	"order-router/internal/journal"
	"order-router/internal/order"
	"order-router/internal/trade"
)

type mockPlacer struct {
	spec    *order.Spec
	outcome trade.Outcome
	err     error
}

func (m *mockPlacer) PlaceOrder(ctx context.Context, spec *order.Spec) (trade.Outcome, error) {
	m.spec = spec
	return m.outcome, m.err
}

type mockApplier struct {
	req hedge.Request
	err error
}

func (m *mockApplier) Apply(ctx context.Context, req hedge.Request) error {
	m.req = req
	return m.err
}

type mockLister struct {
	events []journal.Event
}

func (m *mockLister) ListEvents(ctx context.Context, eventType journal.EventType, limit int) ([]journal.Event, error) {
	return m.events, nil
}

func newTestServer(placer OrderPlacer, applier HedgeApplier, cfg config.ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	return New(cfg, placer, applier, &mockLister{}, nil)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload interface{}, remote string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	if remote != "" {
		req.RemoteAddr = remote
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleOrder_FuturesSuffixStripped(t *testing.T) {
	placer := &mockPlacer{
		outcome: trade.Outcome{
			Result:  order.Result{OrderID: "42"},
			Display: order.Display{Label: order.LabelQuantity, Value: "1"},
		},
	}
	srv := newTestServer(placer, &mockApplier{}, config.ServerConfig{})

	payload := OrderPayload{
		Exchange: "binance",
		Base:     "btc",
		Quote:    "USDT.P",
		Side:     "entry/sell",
		Amount:   order.FloatPtr(1),
	}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/order", payload, "127.0.0.1:9999")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body=%s", rec.Code, rec.Body.String())
	}
	if placer.spec == nil {
		t.Fatalf("expected spec forwarded to placer")
	}
	if placer.spec.Class != order.ClassFutures {
		t.Errorf("class: got %s want futures", placer.spec.Class)
	}
	if placer.spec.Quote != "USDT" {
		t.Errorf("quote: got %s want USDT", placer.spec.Quote)
	}
	if placer.spec.Base != "BTC" {
		t.Errorf("base: got %s want BTC", placer.spec.Base)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["order_id"] != "42" {
		t.Errorf("order_id: got %v want 42", body["order_id"])
	}
}

func TestHandleOrder_RootAliasRoutes(t *testing.T) {
	placer := &mockPlacer{}
	srv := newTestServer(placer, &mockApplier{}, config.ServerConfig{})

	payload := OrderPayload{
		Exchange: "UPBIT",
		Base:     "BTC",
		Quote:    "KRW",
		Side:     "buy",
		Amount:   order.FloatPtr(0.1),
	}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/", payload, "127.0.0.1:9999")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body=%s", rec.Code, rec.Body.String())
	}
	if placer.spec == nil || placer.spec.Venue != order.VenueUpbit {
		t.Errorf("expected upbit spec via root alias, got %+v", placer.spec)
	}
}

func TestHandleOrder_ValidationFailure(t *testing.T) {
	srv := newTestServer(&mockPlacer{}, &mockApplier{}, config.ServerConfig{})

	payload := OrderPayload{
		Exchange: "BINANCE",
		Base:     "BTC",
		Quote:    "USDT",
		Side:     "buy",
		Amount:   order.FloatPtr(1),
		Percent:  order.FloatPtr(50),
	}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/order", payload, "127.0.0.1:9999")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want 400, body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleOrder_PasswordEnforced(t *testing.T) {
	srv := newTestServer(&mockPlacer{}, &mockApplier{}, config.ServerConfig{Password: "secret"})

	payload := OrderPayload{
		Password: "wrong",
		Exchange: "BINANCE",
		Base:     "BTC",
		Quote:    "USDT",
		Side:     "buy",
		Amount:   order.FloatPtr(1),
	}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/order", payload, "127.0.0.1:9999")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d want 403", rec.Code)
	}

	payload.Password = "secret"
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/order", payload, "127.0.0.1:9999")
	if rec.Code != http.StatusOK {
		t.Fatalf("status with correct password: got %d want 200, body=%s", rec.Code, rec.Body.String())
	}
}

func TestAllowlist_RejectsUnknownSource(t *testing.T) {
	srv := newTestServer(&mockPlacer{}, &mockApplier{}, config.ServerConfig{})

	payload := OrderPayload{Exchange: "BINANCE", Base: "BTC", Quote: "USDT", Side: "buy", Amount: order.FloatPtr(1)}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/order", payload, "203.0.113.50:1234")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d want 403", rec.Code)
	}

	// 信号源官方出口与私网地址放行。
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/order", payload, "52.89.214.238:1234")
	if rec.Code != http.StatusOK {
		t.Fatalf("official signal source must be allowed, got %d", rec.Code)
	}
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/order", payload, "192.168.1.10:1234")
	if rec.Code != http.StatusOK {
		t.Fatalf("private address must be allowed, got %d", rec.Code)
	}
}

func TestAllowlist_ExtraEntriesFromConfig(t *testing.T) {
	srv := newTestServer(&mockPlacer{}, &mockApplier{}, config.ServerConfig{Whitelist: []string{"203.0.113.50"}})

	payload := OrderPayload{Exchange: "BINANCE", Base: "BTC", Quote: "USDT", Side: "buy", Amount: order.FloatPtr(1)}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/order", payload, "203.0.113.50:1234")
	if rec.Code == http.StatusForbidden {
		t.Fatalf("configured whitelist entry must be allowed, got 403")
	}
}

func TestHealthz_BypassesAllowlist(t *testing.T) {
	srv := newTestServer(&mockPlacer{}, &mockApplier{}, config.ServerConfig{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil, "203.0.113.50:1234")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status: got %d want 200", rec.Code)
	}
}

func TestHandleHedge_ModeMapping(t *testing.T) {
	applier := &mockApplier{}
	srv := newTestServer(&mockPlacer{}, applier, config.ServerConfig{})

	payload := HedgePayload{
		Exchange: "BINANCE",
		Base:     "BTC",
		Quote:    "USDT",
		Amount:   order.FloatPtr(0.5),
		Hedge:    "on",
	}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/hedge", payload, "127.0.0.1:9999")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body=%s", rec.Code, rec.Body.String())
	}
	if applier.req.Mode != hedge.ModeOn {
		t.Errorf("mode: got %s want ON", applier.req.Mode)
	}

	payload.Hedge = "maybe"
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/hedge", payload, "127.0.0.1:9999")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid mode status: got %d want 400", rec.Code)
	}
}

func TestHandleHedge_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nothing to close", hedge.ErrNothingToClose, http.StatusOK},
		{"inconsistency", &hedge.InconsistencyError{Base: "BTC", EmptyVenues: []order.Venue{order.VenueUpbit}}, http.StatusConflict},
		{"leg failure", &hedge.LegFailureError{Base: "BTC", Compensated: true}, http.StatusBadGateway},
		{"compensation failure", &hedge.CompensationError{Base: "BTC"}, http.StatusInternalServerError},
	}

	payload := HedgePayload{Exchange: "BINANCE", Base: "BTC", Quote: "USDT", Amount: order.FloatPtr(0.5), Hedge: "OFF"}
	for _, tc := range cases {
		srv := newTestServer(&mockPlacer{}, &mockApplier{err: tc.err}, config.ServerConfig{})
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/hedge", payload, "127.0.0.1:9999")
		if rec.Code != tc.want {
			t.Errorf("%s: status got %d want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestHandleEvents(t *testing.T) {
	srv := newTestServer(&mockPlacer{}, &mockApplier{}, config.ServerConfig{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/events?type=order&limit=10", nil, "127.0.0.1:9999")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/events?limit=abc", nil, "127.0.0.1:9999")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status: got %d want 400", rec.Code)
	}
}

package cred

import (
	"context"
	"errors"
	"testing"

	"order-router/internal/config"
	"order-router/internal/order"
	"order-router/internal/store"
)

func newTestStore(t *testing.T, cfg *config.Config) *Store {
	t.Helper()

	st, err := store.NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	s, err := NewStore(st, cfg, nil)
	if err != nil {
		t.Fatalf("create cred store: %v", err)
	}
	return s
}

func insertKey(t *testing.T, s *Store, venue string, slot int, apiKey string, active int) {
	t.Helper()
	_, err := s.db.Exec(
		`INSERT INTO api_keys (venue, slot, api_key, secret_key, is_active) VALUES (?, ?, ?, ?, ?)`,
		venue, slot, apiKey, "sec-"+apiKey, active,
	)
	if err != nil {
		t.Fatalf("insert key: %v", err)
	}
}

func TestCredentials_DatabaseTakesPriority(t *testing.T) {
	cfg := &config.Config{
		Venues: map[string]config.VenueConfig{
			"binance": {APIKey: "cfg-key", APISecret: "cfg-secret"},
		},
	}
	s := newTestStore(t, cfg)
	insertKey(t, s, "BINANCE", 0, "db-key", 1)

	creds, err := s.Credentials(context.Background(), order.VenueBinance, 0)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if creds.APIKey != "db-key" {
		t.Errorf("api key: got %s want db-key", creds.APIKey)
	}
}

func TestCredentials_InactiveRowsIgnored(t *testing.T) {
	cfg := &config.Config{
		Venues: map[string]config.VenueConfig{
			"binance": {APIKey: "cfg-key", APISecret: "cfg-secret"},
		},
	}
	s := newTestStore(t, cfg)
	insertKey(t, s, "BINANCE", 0, "disabled-key", 0)

	creds, err := s.Credentials(context.Background(), order.VenueBinance, 0)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if creds.APIKey != "cfg-key" {
		t.Errorf("expected config fallback, got %s", creds.APIKey)
	}
}

func TestCredentials_ConfigFallbackCaseInsensitive(t *testing.T) {
	cfg := &config.Config{
		Venues: map[string]config.VenueConfig{
			"upbit": {APIKey: "upbit-key", APISecret: "upbit-secret", UseSandbox: true},
		},
	}
	s := newTestStore(t, cfg)

	creds, err := s.Credentials(context.Background(), order.VenueUpbit, 0)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if creds.APIKey != "upbit-key" || !creds.UseSandbox {
		t.Errorf("unexpected credentials: %+v", creds)
	}
}

func TestCredentials_StockSlotLookup(t *testing.T) {
	cfg := &config.Config{
		KIS: []config.KISAccountConfig{
			{Slot: 1, APIKey: "kis-1", APISecret: "s1", AccountNumber: "111", AccountCode: "01"},
			{Slot: 2, APIKey: "kis-2", APISecret: "s2", AccountNumber: "222", AccountCode: "02"},
		},
	}
	s := newTestStore(t, cfg)

	creds, err := s.Credentials(context.Background(), order.VenueKRX, 2)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if creds.APIKey != "kis-2" || creds.AccountNumber != "222" {
		t.Errorf("unexpected stock credentials: %+v", creds)
	}
}

func TestCredentials_NotFound(t *testing.T) {
	s := newTestStore(t, &config.Config{})

	_, err := s.Credentials(context.Background(), order.VenueOKX, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

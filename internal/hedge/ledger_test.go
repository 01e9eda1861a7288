package hedge

import (
	"context"
	"testing"

	"order-router/internal/config"
	"order-router/internal/order"
	"order-router/internal/store"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
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

	ledger, err := NewSQLiteLedger(st, nil)
	if err != nil {
		t.Fatalf("create ledger: %v", err)
	}
	return ledger
}

func TestLedger_SumPerVenue(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	for _, rec := range []LegRecord{
		{Venue: order.VenueBinance, Base: "BTC", Quote: "USDT", Amount: 0.5},
		{Venue: order.VenueBinance, Base: "BTC", Quote: "USDT", Amount: 0.25},
		{Venue: order.VenueUpbit, Base: "BTC", Quote: "KRW", Amount: 0.74},
		{Venue: order.VenueBinance, Base: "ETH", Quote: "USDT", Amount: 3.0},
	} {
		if _, err := ledger.CreateLeg(ctx, rec); err != nil {
			t.Fatalf("CreateLeg: %v", err)
		}
	}

	summaries, err := ledger.OpenLegs(ctx, "BTC")
	if err != nil {
		t.Fatalf("OpenLegs: %v", err)
	}

	binance := summaries[order.VenueBinance]
	if diff := binance.Amount - 0.75; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("BINANCE sum: got %f want 0.75", binance.Amount)
	}
	if len(binance.IDs) != 2 {
		t.Errorf("BINANCE contributing records: got %d want 2", len(binance.IDs))
	}
	upbit := summaries[order.VenueUpbit]
	if diff := upbit.Amount - 0.74; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("UPBIT sum: got %f want 0.74", upbit.Amount)
	}

	// 其他 base 的记录不得混入。
	if _, ok := summaries[order.VenueOKX]; ok {
		t.Errorf("unexpected venue in summaries: %v", summaries)
	}
	ethSummaries, err := ledger.OpenLegs(ctx, "ETH")
	if err != nil {
		t.Fatalf("OpenLegs(ETH): %v", err)
	}
	if diff := ethSummaries[order.VenueBinance].Amount - 3.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("ETH sum: got %f want 3.0", ethSummaries[order.VenueBinance].Amount)
	}
}

func TestLedger_OpenLegsIsIdempotent(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.CreateLeg(ctx, LegRecord{Venue: order.VenueBinance, Base: "BTC", Quote: "USDT", Amount: 1.5}); err != nil {
		t.Fatalf("CreateLeg: %v", err)
	}

	first, err := ledger.OpenLegs(ctx, "BTC")
	if err != nil {
		t.Fatalf("OpenLegs: %v", err)
	}
	second, err := ledger.OpenLegs(ctx, "BTC")
	if err != nil {
		t.Fatalf("OpenLegs: %v", err)
	}
	if first[order.VenueBinance].Amount != second[order.VenueBinance].Amount {
		t.Errorf("repeated reads must agree: %f vs %f",
			first[order.VenueBinance].Amount, second[order.VenueBinance].Amount)
	}
}

func TestLedger_DeleteLegs(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	id1, err := ledger.CreateLeg(ctx, LegRecord{Venue: order.VenueBinance, Base: "BTC", Quote: "USDT", Amount: 0.5})
	if err != nil {
		t.Fatalf("CreateLeg: %v", err)
	}
	id2, err := ledger.CreateLeg(ctx, LegRecord{Venue: order.VenueBinance, Base: "BTC", Quote: "USDT", Amount: 0.5})
	if err != nil {
		t.Fatalf("CreateLeg: %v", err)
	}
	keep, err := ledger.CreateLeg(ctx, LegRecord{Venue: order.VenueUpbit, Base: "BTC", Quote: "KRW", Amount: 1.0})
	if err != nil {
		t.Fatalf("CreateLeg: %v", err)
	}

	if err := ledger.DeleteLegs(ctx, []string{id1, id2}); err != nil {
		t.Fatalf("DeleteLegs: %v", err)
	}

	summaries, err := ledger.OpenLegs(ctx, "BTC")
	if err != nil {
		t.Fatalf("OpenLegs: %v", err)
	}
	if _, ok := summaries[order.VenueBinance]; ok {
		t.Errorf("deleted venue records still present: %v", summaries)
	}
	upbit := summaries[order.VenueUpbit]
	if len(upbit.IDs) != 1 || upbit.IDs[0] != keep {
		t.Errorf("untouched record must survive, got %v", upbit.IDs)
	}
}

func TestLedger_DeleteLegsEmpty(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.DeleteLegs(context.Background(), nil); err != nil {
		t.Fatalf("DeleteLegs(nil) should be a no-op, got %v", err)
	}
}

func TestLedger_PreservesProvidedID(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	id, err := ledger.CreateLeg(ctx, LegRecord{ID: "fixed-id", Venue: order.VenueBinance, Base: "BTC", Quote: "USDT", Amount: 0.1})
	if err != nil {
		t.Fatalf("CreateLeg: %v", err)
	}
	if id != "fixed-id" {
		t.Errorf("expected provided id to be kept, got %s", id)
	}
}

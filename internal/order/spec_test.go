package order

import (
	"errors"
	"testing"
)

func TestValidate_SizingMutuallyExclusive(t *testing.T) {
	base := Spec{
		Venue:  VenueBinance,
		Class:  ClassFutures,
		Base:   "BTC",
		Quote:  "USDT",
		Action: ActionEntrySell,
	}

	both := base
	both.Amount = FloatPtr(1)
	both.Percent = FloatPtr(50)
	if err := both.Validate(); !isValidationError(err) {
		t.Fatalf("expected validation error when both amount and percent set, got %v", err)
	}

	neither := base
	if err := neither.Validate(); !isValidationError(err) {
		t.Fatalf("expected validation error when neither amount nor percent set, got %v", err)
	}

	ok := base
	ok.Amount = FloatPtr(1)
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid spec, got %v", err)
	}
}

func TestValidate_StockConstraints(t *testing.T) {
	spec := Spec{
		Venue:    VenueKRX,
		Class:    ClassStock,
		Base:     "005930",
		Action:   ActionBuy,
		Amount:   FloatPtr(10),
		Leverage: Int64Ptr(5),
	}
	if err := spec.Validate(); !isValidationError(err) {
		t.Fatalf("expected validation error for leveraged stock order, got %v", err)
	}

	spec.Leverage = nil
	spec.Action = ActionEntryBuy
	if err := spec.Validate(); !isValidationError(err) {
		t.Fatalf("expected validation error for stock entry action, got %v", err)
	}

	spec.Action = ActionSell
	if err := spec.Validate(); err != nil {
		t.Fatalf("expected valid stock order, got %v", err)
	}
}

func TestValidate_FuturesActions(t *testing.T) {
	spec := Spec{
		Venue:  VenueBinance,
		Class:  ClassFutures,
		Base:   "BTC",
		Quote:  "USDT",
		Action: ActionBuy,
		Amount: FloatPtr(1),
	}
	if err := spec.Validate(); !isValidationError(err) {
		t.Fatalf("expected validation error for plain buy on futures, got %v", err)
	}

	for _, action := range []Action{ActionEntryBuy, ActionEntrySell, ActionCloseBuy, ActionCloseSell} {
		spec.Action = action
		if err := spec.Validate(); err != nil {
			t.Fatalf("expected %s to be valid for futures, got %v", action, err)
		}
	}
}

func TestContracts_FloorDivision(t *testing.T) {
	spec := Spec{
		Venue:        VenueOKX,
		Class:        ClassFutures,
		Base:         "BTC",
		Quote:        "USDT",
		Action:       ActionEntrySell,
		Amount:       FloatPtr(105),
		ContractSize: FloatPtr(10),
	}

	count, residual := spec.Contracts()
	if count != 10 {
		t.Errorf("expected 10 contracts, got %d", count)
	}
	if diff := residual - 5; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected residual 5, got %f", residual)
	}
}

func TestParseAction(t *testing.T) {
	cases := map[string]Action{
		"entry/sell": ActionEntrySell,
		"ENTRY/BUY":  ActionEntryBuy,
		"close/buy":  ActionCloseBuy,
		" sell ":     ActionSell,
	}
	for input, want := range cases {
		got, err := ParseAction(input)
		if err != nil {
			t.Fatalf("ParseAction(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Errorf("ParseAction(%q) = %s, want %s", input, got, want)
		}
	}

	if _, err := ParseAction("hold"); !isValidationError(err) {
		t.Fatalf("expected validation error for unknown action, got %v", err)
	}
}

func isValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package order

import (
	"fmt"
	"math"
	"strings"
)

// Venue 表示支持的交易场所。
type Venue string

const (
	VenueUpbit   Venue = "UPBIT"
	VenueBinance Venue = "BINANCE"
	VenueBybit   Venue = "BYBIT"
	VenueBitget  Venue = "BITGET"
	VenueOKX     Venue = "OKX"
	VenueKRX     Venue = "KRX"
	VenueNasdaq  Venue = "NASDAQ"
	VenueNYSE    Venue = "NYSE"
	VenueAmex    Venue = "AMEX"
)

var stockVenues = map[Venue]bool{
	VenueKRX:    true,
	VenueNasdaq: true,
	VenueNYSE:   true,
	VenueAmex:   true,
}

var cryptoVenues = map[Venue]bool{
	VenueUpbit:   true,
	VenueBinance: true,
	VenueBybit:   true,
	VenueBitget:  true,
	VenueOKX:     true,
}

// ParseVenue 将入站字符串解析为 Venue。
func ParseVenue(s string) (Venue, error) {
	v := Venue(strings.ToUpper(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", &ValidationError{Reason: fmt.Sprintf("未知的交易所 %q", s)}
	}
	return v, nil
}

// Valid 判断是否为已知交易所。
func (v Venue) Valid() bool {
	return stockVenues[v] || cryptoVenues[v]
}

// IsStock 判断是否为证券交易所。
func (v Venue) IsStock() bool {
	return stockVenues[v]
}

// IsCrypto 判断是否为加密货币交易所。
func (v Venue) IsCrypto() bool {
	return cryptoVenues[v]
}

// InstrumentClass 区分现货、合约与股票三类标的。
type InstrumentClass string

const (
	ClassSpot    InstrumentClass = "spot"
	ClassFutures InstrumentClass = "futures"
	ClassStock   InstrumentClass = "stock"
)

// Action 表示标准化后的下单动作，沿用入站信号的 side 语法。
type Action string

const (
	ActionEntryBuy  Action = "entry/buy"
	ActionEntrySell Action = "entry/sell"
	ActionCloseBuy  Action = "close/buy"
	ActionCloseSell Action = "close/sell"
	ActionBuy       Action = "buy"
	ActionSell      Action = "sell"
)

// ParseAction 解析入站 side 字段。
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionEntryBuy, ActionEntrySell, ActionCloseBuy, ActionCloseSell, ActionBuy, ActionSell:
		return a, nil
	}
	return "", &ValidationError{Reason: fmt.Sprintf("未知的下单动作 %q", s)}
}

// IsEntry 判断是否为合约开仓动作。
func (a Action) IsEntry() bool {
	return a == ActionEntryBuy || a == ActionEntrySell
}

// IsClose 判断是否为合约平仓动作。
func (a Action) IsClose() bool {
	return a == ActionCloseBuy || a == ActionCloseSell
}

// IsBuy 判断买入方向。
func (a Action) IsBuy() bool {
	return a == ActionBuy || a == ActionEntryBuy || a == ActionCloseBuy
}

// IsSell 判断卖出方向。
func (a Action) IsSell() bool {
	return a == ActionSell || a == ActionEntrySell || a == ActionCloseSell
}

// Side 返回提交给交易所的原始方向（buy/sell）。
func (a Action) Side() string {
	if a.IsBuy() {
		return "buy"
	}
	return "sell"
}

// Spec 是标准化后的单笔交易意图，构造完成后不再修改。
type Spec struct {
	Venue Venue
	Class InstrumentClass
	Base  string
	Quote string

	Action Action

	// Amount 与 Percent 互斥，二者必须且只能设置其一。
	Amount  *float64
	Percent *float64

	// Price 为信号携带的参考价，成本计价场所据此折算名义金额。
	Price *float64

	// ContractSize 仅在按张数计价的合约场所出现。
	ContractSize *float64

	// Leverage 仅对合约有效。
	Leverage *int64

	// KISSlot 为证券场所的子账户序号（1 起）。
	KISSlot int

	// OrderName 为信号方自定义的订单名称，仅用于通知展示。
	OrderName string
}

// Validate 校验互斥条件与品种约束。
func (s *Spec) Validate() error {
	if !s.Venue.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("未知的交易所 %q", string(s.Venue))}
	}
	if s.Base == "" {
		return &ValidationError{Reason: "base 不能为空"}
	}

	if (s.Amount == nil) == (s.Percent == nil) {
		return &ValidationError{Reason: "amount 与 percent 必须且只能设置其一"}
	}
	if s.Amount != nil && *s.Amount <= 0 {
		return &ValidationError{Reason: "amount 必须为正"}
	}
	if s.Percent != nil && (*s.Percent <= 0 || *s.Percent > 100) {
		return &ValidationError{Reason: "percent 必须位于(0,100]"}
	}

	switch s.Class {
	case ClassStock:
		if !s.Venue.IsStock() {
			return &ValidationError{Reason: fmt.Sprintf("%s 不是证券交易所", s.Venue)}
		}
		if s.Leverage != nil {
			return &ValidationError{Reason: "股票订单不支持杠杆"}
		}
		if s.Action != ActionBuy && s.Action != ActionSell {
			return &ValidationError{Reason: "股票订单仅支持 buy/sell"}
		}
	case ClassFutures:
		if !s.Venue.IsCrypto() {
			return &ValidationError{Reason: fmt.Sprintf("%s 不支持合约交易", s.Venue)}
		}
		if !s.Action.IsEntry() && !s.Action.IsClose() {
			return &ValidationError{Reason: "合约订单仅支持 entry/close 动作"}
		}
	case ClassSpot:
		if !s.Venue.IsCrypto() {
			return &ValidationError{Reason: fmt.Sprintf("%s 不支持现货交易", s.Venue)}
		}
		if s.Action != ActionBuy && s.Action != ActionSell {
			return &ValidationError{Reason: "现货订单仅支持 buy/sell"}
		}
		if s.Leverage != nil {
			return &ValidationError{Reason: "现货订单不支持杠杆"}
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("未知的标的类别 %q", string(s.Class))}
	}

	if s.ContractSize != nil && *s.ContractSize <= 0 {
		return &ValidationError{Reason: "contract_size 必须为正"}
	}

	return nil
}

// Symbol 返回交易对符号。
func (s *Spec) Symbol() string {
	if s.Class == ClassStock || s.Quote == "" {
		return s.Base
	}
	return s.Base + "/" + s.Quote
}

// IsFutures 判断是否为合约订单。
func (s *Spec) IsFutures() bool {
	return s.Class == ClassFutures
}

// Contracts 将绝对数量向下取整折算为整张合约数，并返回无法整除的残余量。
// 残余量只舍弃、不进位，且必须保留在展示结果里以便审计。
func (s *Spec) Contracts() (count int64, residual float64) {
	if s.Amount == nil || s.ContractSize == nil || *s.ContractSize <= 0 {
		return 0, 0
	}
	count = int64(math.Floor(*s.Amount / *s.ContractSize))
	residual = *s.Amount - float64(count)**s.ContractSize
	return count, residual
}

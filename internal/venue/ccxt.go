package venue

import (
	"context"
	"fmt"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"order-router/internal/order"
)

// marketClient 抽象适配器依赖的 ccxt 操作，便于在测试中替换。
type marketClient interface {
	CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error)
	FetchOrder(id string, options ...ccxt.FetchOrderOptions) (ccxt.Order, error)
	FetchTicker(symbol string, options ...ccxt.FetchTickerOptions) (ccxt.Ticker, error)
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
	SetLeverage(leverage int64, options ...ccxt.SetLeverageOptions) (map[string]interface{}, error)
}

// CCXTAdapter 基于 ccxt 实现加密货币场所的下单能力。
type CCXTAdapter struct {
	venue  order.Venue
	class  order.InstrumentClass
	caps   order.Capabilities
	client marketClient
	logger *zap.Logger
}

var _ Adapter = (*CCXTAdapter)(nil)

// NewCCXTAdapter 构造 ccxt 适配器。
func NewCCXTAdapter(v order.Venue, class order.InstrumentClass, client marketClient, logger *zap.Logger) *CCXTAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CCXTAdapter{
		venue:  v,
		class:  class,
		caps:   order.CapabilitiesFor(v, class),
		client: client,
		logger: logger,
	}
}

// MarketEntry 合约开仓。按比例下单时先根据账户余额折算数量，
// 折算结果随 Result.AmountByPercent 一并返回。
func (a *CCXTAdapter) MarketEntry(ctx context.Context, spec *order.Spec) (order.Result, error) {
	if err := ctx.Err(); err != nil {
		return order.Result{}, err
	}

	if spec.Leverage != nil {
		// 杠杆设置失败不阻断下单：多数场所对重复设置同一杠杆直接报错。
		if _, err := a.client.SetLeverage(*spec.Leverage, ccxt.WithSetLeverageSymbol(spec.Symbol())); err != nil {
			a.logger.Warn("设置杠杆失败，继续下单",
				zap.String("venue", string(a.venue)),
				zap.String("symbol", spec.Symbol()),
				zap.Int64("leverage", *spec.Leverage),
				zap.Error(err),
			)
		}
	}

	amount, amountByPercent, err := a.entryAmount(spec)
	if err != nil {
		return order.Result{}, err
	}

	raw, err := a.client.CreateMarketOrder(spec.Symbol(), spec.Action.Side(), amount)
	if err != nil {
		return order.Result{}, wrapAPIError(a.venue, "marketEntry", err)
	}

	result := convertOrder(raw)
	result.AmountByPercent = amountByPercent
	return result, nil
}

// MarketClose 合约平仓，方向与开仓相反，reduceOnly 保证不会反向开新仓。
func (a *CCXTAdapter) MarketClose(ctx context.Context, spec *order.Spec) (order.Result, error) {
	if err := ctx.Err(); err != nil {
		return order.Result{}, err
	}

	if spec.Amount == nil {
		return order.Result{}, &order.ValidationError{Reason: "平仓必须指定数量"}
	}

	amount := *spec.Amount
	if a.caps.UsesContracts && spec.ContractSize != nil {
		count, _ := spec.Contracts()
		if count <= 0 {
			return order.Result{}, &order.ValidationError{Reason: "数量不足一张合约"}
		}
		amount = float64(count)
	}

	params := map[string]interface{}{"reduceOnly": true}
	raw, err := a.client.CreateMarketOrder(spec.Symbol(), spec.Action.Side(), amount,
		ccxt.WithCreateMarketOrderParams(params))
	if err != nil {
		return order.Result{}, wrapAPIError(a.venue, "marketClose", err)
	}

	return convertOrder(raw), nil
}

// MarketBuy 现货市价买入。成本计价场所以名义金额提交，
// 构造时已关闭 createMarketBuyOrderRequiresPrice。
func (a *CCXTAdapter) MarketBuy(ctx context.Context, spec *order.Spec) (order.Result, error) {
	if err := ctx.Err(); err != nil {
		return order.Result{}, err
	}

	amount, err := a.buyAmount(spec)
	if err != nil {
		return order.Result{}, err
	}

	raw, err := a.client.CreateMarketOrder(spec.Symbol(), "buy", amount)
	if err != nil {
		return order.Result{}, wrapAPIError(a.venue, "marketBuy", err)
	}

	return convertOrder(raw), nil
}

// MarketSell 现货市价卖出。
func (a *CCXTAdapter) MarketSell(ctx context.Context, spec *order.Spec) (order.Result, error) {
	if err := ctx.Err(); err != nil {
		return order.Result{}, err
	}

	amount := 0.0
	switch {
	case spec.Amount != nil:
		amount = *spec.Amount
	case spec.Percent != nil:
		free, err := a.freeBalance(spec.Base)
		if err != nil {
			return order.Result{}, err
		}
		amount = free * *spec.Percent / 100
	}
	if amount <= 0 {
		return order.Result{}, &order.ValidationError{Reason: "卖出数量无效"}
	}

	raw, err := a.client.CreateMarketOrder(spec.Symbol(), "sell", amount)
	if err != nil {
		return order.Result{}, wrapAPIError(a.venue, "marketSell", err)
	}

	return convertOrder(raw), nil
}

// FetchOrder 查询订单详情。
func (a *CCXTAdapter) FetchOrder(ctx context.Context, id, symbol string) (order.Result, error) {
	if err := ctx.Err(); err != nil {
		return order.Result{}, err
	}

	raw, err := a.client.FetchOrder(id, ccxt.WithFetchOrderSymbol(symbol))
	if err != nil {
		return order.Result{}, wrapAPIError(a.venue, "fetchOrder", err)
	}

	return convertOrder(raw), nil
}

func (a *CCXTAdapter) entryAmount(spec *order.Spec) (float64, *float64, error) {
	if spec.Percent != nil {
		free, err := a.freeBalance(spec.Quote)
		if err != nil {
			return 0, nil, err
		}
		last, err := a.lastPrice(spec.Symbol())
		if err != nil {
			return 0, nil, err
		}
		amount := free * *spec.Percent / 100 / last
		if a.caps.UsesContracts && spec.ContractSize != nil {
			contracts := float64(int64(amount / *spec.ContractSize))
			if contracts <= 0 {
				return 0, nil, &order.ValidationError{Reason: "按比例折算后不足一张合约"}
			}
			return contracts, order.FloatPtr(contracts), nil
		}
		if amount <= 0 {
			return 0, nil, &order.ValidationError{Reason: "按比例折算出的数量无效"}
		}
		return amount, order.FloatPtr(amount), nil
	}

	if a.caps.UsesContracts && spec.ContractSize != nil {
		count, _ := spec.Contracts()
		if count <= 0 {
			return 0, nil, &order.ValidationError{Reason: "数量不足一张合约"}
		}
		return float64(count), nil, nil
	}

	if spec.Amount == nil {
		return 0, nil, &order.ValidationError{Reason: "开仓必须指定数量或比例"}
	}
	return *spec.Amount, nil, nil
}

func (a *CCXTAdapter) buyAmount(spec *order.Spec) (float64, error) {
	if a.caps.CostBased {
		switch {
		case spec.Amount != nil && spec.Price != nil:
			return *spec.Amount * *spec.Price, nil
		case spec.Amount != nil:
			last, err := a.lastPrice(spec.Symbol())
			if err != nil {
				return 0, err
			}
			return *spec.Amount * last, nil
		case spec.Percent != nil:
			free, err := a.freeBalance(spec.Quote)
			if err != nil {
				return 0, err
			}
			return free * *spec.Percent / 100, nil
		}
		return 0, &order.ValidationError{Reason: "买入数量无效"}
	}

	if spec.Amount != nil {
		return *spec.Amount, nil
	}
	if spec.Percent != nil {
		free, err := a.freeBalance(spec.Quote)
		if err != nil {
			return 0, err
		}
		last, err := a.lastPrice(spec.Symbol())
		if err != nil {
			return 0, err
		}
		return free * *spec.Percent / 100 / last, nil
	}
	return 0, &order.ValidationError{Reason: "买入数量无效"}
}

func (a *CCXTAdapter) freeBalance(code string) (float64, error) {
	balances, err := a.client.FetchBalance()
	if err != nil {
		return 0, wrapAPIError(a.venue, "fetchBalance", err)
	}
	if balances.Free != nil {
		if v, ok := balances.Free[code]; ok && v != nil {
			return *v, nil
		}
	}
	return 0, fmt.Errorf("venue: %s 无 %s 可用余额", a.venue, code)
}

func (a *CCXTAdapter) lastPrice(symbol string) (float64, error) {
	ticker, err := a.client.FetchTicker(symbol)
	if err != nil {
		return 0, wrapAPIError(a.venue, "fetchTicker", err)
	}
	if ticker.Last == nil || *ticker.Last <= 0 {
		return 0, fmt.Errorf("venue: %s 未返回 %s 最新价", a.venue, symbol)
	}
	return *ticker.Last, nil
}

// convertOrder 把 ccxt 订单映射为归一化结果。
// 场所未上报的字段保持为 nil，由上游按未知处理。
func convertOrder(raw ccxt.Order) order.Result {
	result := order.Result{Raw: raw.Info}

	if raw.Id != nil {
		result.OrderID = *raw.Id
	}
	if raw.Filled != nil {
		result.FilledAmount = raw.Filled
	} else if raw.Amount != nil {
		result.FilledAmount = raw.Amount
	}
	if raw.Cost != nil {
		result.Cost = raw.Cost
	}
	if raw.Average != nil {
		result.Price = raw.Average
	} else if raw.Price != nil {
		result.Price = raw.Price
	}

	return result
}

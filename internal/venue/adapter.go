// Package venue 定义交易场所适配器的能力契约，并提供基于 ccxt 的加密货币实现。
// 编排层只依赖 Adapter 接口，按场所标识经由 Registry 查找实例，不关心具体接入协议。
package venue

import (
	"context"

	"order-router/internal/order"
)

// Adapter 是每个场所必须暴露的操作集合。
// 所有操作要么返回归一化的 order.Result，要么返回携带场所原始错误信息的 *APIError。
// 适配器调用是唯一不可回滚的副作用，调用方不得假设它与任何台账写入是原子的。
type Adapter interface {
	// MarketEntry 合约开仓（仅限合约场所）。
	MarketEntry(ctx context.Context, spec *order.Spec) (order.Result, error)
	// MarketClose 合约平仓（仅限合约场所）。
	MarketClose(ctx context.Context, spec *order.Spec) (order.Result, error)
	// MarketBuy 现货/股票市价买入。
	MarketBuy(ctx context.Context, spec *order.Spec) (order.Result, error)
	// MarketSell 现货/股票市价卖出。
	MarketSell(ctx context.Context, spec *order.Spec) (order.Result, error)
	// FetchOrder 查询订单，供成交数量不同步返回的场所事后补全。
	FetchOrder(ctx context.Context, id, symbol string) (order.Result, error)
}

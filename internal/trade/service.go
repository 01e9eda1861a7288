// Package trade 把单笔交易信号路由到目标场所并归一化结果。
package trade

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"order-router/internal/notify"
	"order-router/internal/order"
	"order-router/internal/venue"
)

// AdapterSource 解析场所适配器，由 venue.Registry 实现。
type AdapterSource interface {
	Adapter(ctx context.Context, v order.Venue, class order.InstrumentClass, slot int) (venue.Adapter, error)
}

// Recorder 持久化订单流水。
type Recorder interface {
	RecordOrder(ctx context.Context, spec *order.Spec, res order.Result, display order.Display)
	RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{})
}

// Outcome 为一次下单的归一化结果与结算后的数量展示。
type Outcome struct {
	Result  order.Result
	Display order.Display
}

// Service 执行订单信号：校验、路由、下单、对账。
type Service struct {
	adapters  AdapterSource
	recorder  Recorder
	publisher notify.Publisher
	logger    *zap.Logger
}

// NewService 创建交易服务。
func NewService(adapters AdapterSource, recorder Recorder, publisher notify.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		adapters:  adapters,
		recorder:  recorder,
		publisher: publisher,
		logger:    logger,
	}
}

// PlaceOrder 执行一笔订单信号。
// 校验失败返回 *order.ValidationError 且无任何副作用；
// 下单失败返回场所适配器的错误，流水中记一条异常事件。
func (s *Service) PlaceOrder(ctx context.Context, spec *order.Spec) (Outcome, error) {
	if err := spec.Validate(); err != nil {
		return Outcome{}, err
	}

	caps := order.CapabilitiesFor(spec.Venue, spec.Class)
	intent := order.Describe(spec, caps, nil)

	s.logger.Info("收到订单信号",
		zap.String("venue", string(spec.Venue)),
		zap.String("symbol", spec.Symbol()),
		zap.String("action", string(spec.Action)),
		zap.String(intent.Label, intent.Value),
	)

	adapter, err := s.adapters.Adapter(ctx, spec.Venue, spec.Class, spec.KISSlot)
	if err != nil {
		return Outcome{}, err
	}

	res, err := s.dispatch(ctx, adapter, spec)
	if err != nil {
		s.recordError(ctx, "下单失败", err, spec)
		s.publish(notify.LevelError, "下单失败",
			fmt.Sprintf("%s %s %s: %v", spec.Venue, spec.Symbol(), spec.Action, err))
		return Outcome{}, err
	}

	display := order.Reconcile(spec, caps, &res)

	s.logger.Info("下单成功",
		zap.String("venue", string(spec.Venue)),
		zap.String("symbol", spec.Symbol()),
		zap.String("action", string(spec.Action)),
		zap.String("order_id", res.OrderID),
		zap.String(display.Label, display.Value),
	)
	if s.recorder != nil {
		s.recorder.RecordOrder(ctx, spec, res, display)
	}
	s.publish(notify.LevelInfo, orderTitle(spec),
		fmt.Sprintf("%s\n%s %s\n%s: %s", spec.Venue, spec.Symbol(), spec.Action, display.Label, display.Value))

	return Outcome{Result: res, Display: display}, nil
}

// dispatch 按标的类别与动作选择适配器操作。
func (s *Service) dispatch(ctx context.Context, adapter venue.Adapter, spec *order.Spec) (order.Result, error) {
	if spec.IsFutures() {
		switch {
		case spec.Action.IsEntry():
			return adapter.MarketEntry(ctx, spec)
		case spec.Action.IsClose():
			return adapter.MarketClose(ctx, spec)
		}
		return order.Result{}, &order.ValidationError{Reason: fmt.Sprintf("合约不支持动作 %q", string(spec.Action))}
	}

	if spec.Action.IsBuy() {
		return adapter.MarketBuy(ctx, spec)
	}
	return adapter.MarketSell(ctx, spec)
}

func orderTitle(spec *order.Spec) string {
	if spec.OrderName != "" {
		return spec.OrderName
	}
	return fmt.Sprintf("%s %s", spec.Symbol(), spec.Action)
}

func (s *Service) recordError(ctx context.Context, msg string, err error, spec *order.Spec) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordError(ctx, msg, err, map[string]interface{}{
		"venue":  string(spec.Venue),
		"symbol": spec.Symbol(),
		"action": string(spec.Action),
	})
}

func (s *Service) publish(level notify.Level, title, body string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(notify.Message{Level: level, Title: title, Body: body})
}

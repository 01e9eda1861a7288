package hedge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"order-router/internal/notify"
	"order-router/internal/order"
	"order-router/internal/venue"
)

// AdapterSource 解析场所适配器，由 venue.Registry 实现。
type AdapterSource interface {
	Adapter(ctx context.Context, v order.Venue, class order.InstrumentClass, slot int) (venue.Adapter, error)
}

// Recorder 持久化对冲事件流水。
type Recorder interface {
	RecordHedge(ctx context.Context, event string, payload map[string]interface{})
}

// Orchestrator 驱动两腿对冲的开启与关闭。
//
// 同一 base 的读汇总与写台账序列全程持有该 base 的锁，
// 并发的开启/关闭请求不会交错。两腿严格串行：
// 腿B的数量取决于腿A的实际成交，腿A落账前绝不提交腿B。
type Orchestrator struct {
	adapters  AdapterSource
	ledger    Ledger
	recorder  Recorder
	publisher notify.Publisher
	logger    *zap.Logger

	spotVenue order.Venue
	spotQuote string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator 创建对冲编排器。
func NewOrchestrator(adapters AdapterSource, ledger Ledger, recorder Recorder, publisher notify.Publisher, spotVenue order.Venue, spotQuote string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		adapters:  adapters,
		ledger:    ledger,
		recorder:  recorder,
		publisher: publisher,
		logger:    logger,
		spotVenue: spotVenue,
		spotQuote: spotQuote,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Apply 执行对冲指令。
//
// 已知的不对称行为：开启时腿B失败会回补腿A；
// 关闭时腿A已平、腿B失败则不回补（关闭只减少敞口，部分完成是安全的），
// 调用方会收到明确的错误而非静默成功。
func (o *Orchestrator) Apply(ctx context.Context, req Request) error {
	switch req.Mode {
	case ModeOn:
		return o.open(ctx, req)
	case ModeOff:
		return o.close(ctx, req)
	}
	return &order.ValidationError{Reason: fmt.Sprintf("未知的对冲模式 %q", string(req.Mode))}
}

func (o *Orchestrator) open(ctx context.Context, req Request) error {
	sess := newSession(req.Base)

	if req.Amount == nil {
		sess.transition(stateFailed)
		return &order.ValidationError{Reason: "对冲开启必须指定数量"}
	}

	unlock := o.lockBase(req.Base)
	defer unlock()

	futures, err := o.adapters.Adapter(ctx, req.Venue, order.ClassFutures, 0)
	if err != nil {
		sess.transition(stateFailed)
		return err
	}
	spot, err := o.adapters.Adapter(ctx, o.spotVenue, order.ClassSpot, 0)
	if err != nil {
		sess.transition(stateFailed)
		return err
	}

	legASpec := &order.Spec{
		Venue:    req.Venue,
		Class:    order.ClassFutures,
		Base:     req.Base,
		Quote:    req.Quote,
		Action:   order.ActionEntrySell,
		Amount:   req.Amount,
		Leverage: req.Leverage,
	}

	sess.transition(stateOpeningLegA)
	resA, err := futures.MarketEntry(ctx, legASpec)
	if err != nil {
		// 腿A未成交，无任何台账变更，直接中止。
		sess.transition(stateFailed)
		o.recordHedge(ctx, "hedge_open_failed", req.Base, map[string]interface{}{"stage": "leg_a", "error": err.Error()})
		return err
	}

	filledA := *req.Amount
	if resA.FilledAmount != nil {
		filledA = *resA.FilledAmount
	}

	// 腿A成交是不可逆的外部事实，必须先落账，再做任何可能失败的后续动作。
	if _, err := o.ledger.CreateLeg(ctx, LegRecord{
		Venue:  req.Venue,
		Base:   req.Base,
		Quote:  req.Quote,
		Amount: filledA,
	}); err != nil {
		return fmt.Errorf("hedge: 腿A已成交但落账失败，需人工核对 %s 敞口: %w", req.Base, err)
	}
	sess.transition(stateLegARecorded)

	// 腿B按腿A的实际成交数量买入，合约腿的成交可能与请求数量不同。
	legBSpec := &order.Spec{
		Venue:  o.spotVenue,
		Class:  order.ClassSpot,
		Base:   req.Base,
		Quote:  o.spotQuote,
		Action: order.ActionBuy,
		Amount: order.FloatPtr(filledA),
	}

	sess.transition(stateOpeningLegB)
	resB, legBErr := spot.MarketBuy(ctx, legBSpec)
	if legBErr != nil {
		sess.transition(stateCompensating)
		if compErr := o.compensate(ctx, req, futures); compErr != nil {
			o.recordHedge(ctx, "hedge_compensation_failed", req.Base, map[string]interface{}{
				"leg_b_error": legBErr.Error(),
				"error":       compErr.Error(),
			})
			return &CompensationError{Base: req.Base, LegErr: legBErr, Err: compErr}
		}
		sess.transition(stateCompensated)

		o.logger.Warn("对冲开启失败，已平掉合约腿敞口",
			zap.String("base", req.Base),
			zap.String("venue", string(req.Venue)),
			zap.String("state", string(sess.state)),
			zap.Error(legBErr),
		)
		o.recordHedge(ctx, "hedge_open_compensated", req.Base, map[string]interface{}{"leg_b_error": legBErr.Error()})
		o.publish(notify.LevelError, "对冲开启失败",
			fmt.Sprintf("%s 现货腿失败，合约腿敞口已回补: %v", req.Base, legBErr))

		return &LegFailureError{Base: req.Base, Compensated: true, Err: legBErr}
	}

	// 现货场所不同步上报成交数量，查单补全；查不到时退回提交数量。
	filledB := filledA
	if resB.FilledAmount != nil {
		filledB = *resB.FilledAmount
	}
	if resB.OrderID != "" {
		if detail, err := spot.FetchOrder(ctx, resB.OrderID, legBSpec.Symbol()); err != nil {
			o.logger.Warn("查询现货腿成交失败，按提交数量落账",
				zap.String("order_id", resB.OrderID),
				zap.Error(err),
			)
		} else if detail.FilledAmount != nil {
			filledB = *detail.FilledAmount
		}
	}

	if _, err := o.ledger.CreateLeg(ctx, LegRecord{
		Venue:  o.spotVenue,
		Base:   req.Base,
		Quote:  o.spotQuote,
		Amount: filledB,
	}); err != nil {
		return fmt.Errorf("hedge: 腿B已成交但落账失败，需人工核对 %s 敞口: %w", req.Base, err)
	}
	sess.transition(stateDone)

	o.logger.Info("对冲已开启",
		zap.String("base", req.Base),
		zap.String("state", string(sess.state)),
		zap.String("futures_venue", string(req.Venue)),
		zap.Float64("leg_a_amount", filledA),
		zap.Float64("leg_b_amount", filledB),
	)
	o.recordHedge(ctx, "hedge_opened", req.Base, map[string]interface{}{
		"leg_a_amount": filledA,
		"leg_b_amount": filledB,
	})
	o.publish(notify.LevelInfo, "对冲开启",
		fmt.Sprintf("%s\n%s: %v\n%s: %v", req.Base, req.Venue, filledA, o.spotVenue, filledB))

	return nil
}

// compensate 反向平掉台账中该 base 的全部合约腿敞口并删除贡献记录。
// 多次开启可能已累积多条记录，补偿按汇总数量一次性平仓。
func (o *Orchestrator) compensate(ctx context.Context, req Request, futures venue.Adapter) error {
	summaries, err := o.ledger.OpenLegs(ctx, req.Base)
	if err != nil {
		return err
	}

	legA := summaries[req.Venue]
	if legA.Amount <= 0 {
		return fmt.Errorf("hedge: 台账中无 %s 合约腿敞口可回补", req.Base)
	}

	closeSpec := &order.Spec{
		Venue:  req.Venue,
		Class:  order.ClassFutures,
		Base:   req.Base,
		Quote:  req.Quote,
		Action: order.ActionCloseBuy,
		Amount: order.FloatPtr(legA.Amount),
	}
	if _, err := futures.MarketClose(ctx, closeSpec); err != nil {
		return err
	}

	return o.ledger.DeleteLegs(ctx, legA.IDs)
}

func (o *Orchestrator) close(ctx context.Context, req Request) error {
	unlock := o.lockBase(req.Base)
	defer unlock()

	summaries, err := o.ledger.OpenLegs(ctx, req.Base)
	if err != nil {
		return err
	}

	legA := summaries[req.Venue]
	legB := summaries[o.spotVenue]

	switch {
	case legA.Amount == 0 && legB.Amount == 0:
		o.logger.Info("对冲关闭请求无事可做", zap.String("base", req.Base))
		return ErrNothingToClose
	case legA.Amount == 0:
		return &InconsistencyError{Base: req.Base, EmptyVenues: []order.Venue{req.Venue}}
	case legB.Amount == 0:
		return &InconsistencyError{Base: req.Base, EmptyVenues: []order.Venue{o.spotVenue}}
	}

	futures, err := o.adapters.Adapter(ctx, req.Venue, order.ClassFutures, 0)
	if err != nil {
		return err
	}
	spot, err := o.adapters.Adapter(ctx, o.spotVenue, order.ClassSpot, 0)
	if err != nil {
		return err
	}

	closeSpec := &order.Spec{
		Venue:  req.Venue,
		Class:  order.ClassFutures,
		Base:   req.Base,
		Quote:  req.Quote,
		Action: order.ActionCloseBuy,
		Amount: order.FloatPtr(legA.Amount),
	}
	if _, err := futures.MarketClose(ctx, closeSpec); err != nil {
		// 腿A未动，台账不变。
		o.recordHedge(ctx, "hedge_close_failed", req.Base, map[string]interface{}{"stage": "leg_a", "error": err.Error()})
		return err
	}
	if err := o.ledger.DeleteLegs(ctx, legA.IDs); err != nil {
		return fmt.Errorf("hedge: 合约腿已平但删除台账失败，需人工核对 %s: %w", req.Base, err)
	}

	sellSpec := &order.Spec{
		Venue:  o.spotVenue,
		Class:  order.ClassSpot,
		Base:   req.Base,
		Quote:  o.spotQuote,
		Action: order.ActionSell,
		Amount: order.FloatPtr(legB.Amount),
	}
	if _, err := spot.MarketSell(ctx, sellSpec); err != nil {
		// 关闭阶段不回补：合约腿已平只会减少敞口，现货腿留待调用方重试。
		o.recordHedge(ctx, "hedge_close_partial", req.Base, map[string]interface{}{"leg_b_error": err.Error()})
		o.publish(notify.LevelError, "对冲关闭部分完成",
			fmt.Sprintf("%s 合约腿已平，现货腿卖出失败: %v", req.Base, err))
		return fmt.Errorf("hedge: %s 现货腿平仓失败（合约腿已平，不自动回补）: %w", req.Base, err)
	}
	if err := o.ledger.DeleteLegs(ctx, legB.IDs); err != nil {
		return fmt.Errorf("hedge: 现货腿已平但删除台账失败，需人工核对 %s: %w", req.Base, err)
	}

	o.logger.Info("对冲已关闭",
		zap.String("base", req.Base),
		zap.Float64("leg_a_amount", legA.Amount),
		zap.Float64("leg_b_amount", legB.Amount),
	)
	o.recordHedge(ctx, "hedge_closed", req.Base, map[string]interface{}{
		"leg_a_amount": legA.Amount,
		"leg_b_amount": legB.Amount,
	})
	o.publish(notify.LevelInfo, "对冲关闭",
		fmt.Sprintf("%s\n%s: %v\n%s: %v", req.Base, req.Venue, legA.Amount, o.spotVenue, legB.Amount))

	return nil
}

// lockBase 获取并持有 base 级别的互斥锁。
func (o *Orchestrator) lockBase(base string) func() {
	o.mu.Lock()
	lock, ok := o.locks[base]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[base] = lock
	}
	o.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (o *Orchestrator) recordHedge(ctx context.Context, event, base string, payload map[string]interface{}) {
	if o.recorder == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["base"] = base
	o.recorder.RecordHedge(ctx, event, payload)
}

func (o *Orchestrator) publish(level notify.Level, title, body string) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(notify.Message{Level: level, Title: title, Body: body})
}

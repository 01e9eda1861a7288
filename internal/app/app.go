// Package app 聚合各组件并驱动系统生命周期。
package app

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"order-router/internal/config"
	"order-router/internal/cred"
	"order-router/internal/hedge"
	"order-router/internal/journal"
	"order-router/internal/notify"
	"order-router/internal/order"
	"order-router/internal/server"
	"order-router/internal/store"
	"order-router/internal/trade"
	"order-router/internal/venue"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 组装全部组件并阻塞运行，直到 ctx 结束或任一组件失败。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("订单路由已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("addr", a.cfg.Server.Addr),
		zap.String("hedge_futures_venue", a.cfg.Hedge.FuturesVenue),
		zap.String("hedge_spot_venue", a.cfg.Hedge.SpotVenue),
	)

	provider, err := cred.NewStore(a.store, a.cfg, a.logger)
	if err != nil {
		return err
	}
	registry := venue.NewRegistry(provider, a.logger)

	journalSvc, err := journal.NewService(a.store, a.logger)
	if err != nil {
		return err
	}
	ledger, err := hedge.NewSQLiteLedger(a.store, a.logger)
	if err != nil {
		return err
	}

	var sink notify.Sink
	if a.cfg.Notify.DiscordWebhookURL != "" {
		sink = notify.NewDiscordSink(a.cfg.Notify.DiscordWebhookURL, a.cfg.Notify.Timeout)
	}
	dispatcher := notify.NewDispatcher(sink, a.cfg.Notify.Buffer, a.logger)

	tradeSvc := trade.NewService(registry, journalSvc, dispatcher, a.logger)

	futuresVenue, err := order.ParseVenue(a.cfg.Hedge.FuturesVenue)
	if err != nil {
		return err
	}
	spotVenue, err := order.ParseVenue(a.cfg.Hedge.SpotVenue)
	if err != nil {
		return err
	}
	orchestrator := hedge.NewOrchestrator(
		registry, ledger, journalSvc, dispatcher,
		spotVenue, a.cfg.Hedge.SpotQuote, a.logger,
	)

	srv := server.New(a.cfg.Server,
		tradeSvc,
		&hedgeGateway{orchestrator: orchestrator, futuresVenue: futuresVenue},
		journalSvc,
		a.logger,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return dispatcher.Run(groupCtx)
	})
	group.Go(func() error {
		return srv.Run(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}

// hedgeGateway 在对冲信号未指明场所时套用配置的默认合约场所。
type hedgeGateway struct {
	orchestrator *hedge.Orchestrator
	futuresVenue order.Venue
}

func (g *hedgeGateway) Apply(ctx context.Context, req hedge.Request) error {
	if req.Venue == "" {
		req.Venue = g.futuresVenue
	}
	return g.orchestrator.Apply(ctx, req)
}

// Package server 暴露入站信号的 HTTP 端点。
// 信号来源受 IP 白名单约束，可选的口令校验在白名单之上再加一层。
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"order-router/internal/config"
	"order-router/internal/hedge"
	"order-router/internal/journal"
	"order-router/internal/order"
	"order-router/internal/trade"
	"order-router/internal/venue"
)

// OrderPlacer 执行订单信号。
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, spec *order.Spec) (trade.Outcome, error)
}

// HedgeApplier 执行对冲信号。
type HedgeApplier interface {
	Apply(ctx context.Context, req hedge.Request) error
}

// EventLister 检索流水事件。
type EventLister interface {
	ListEvents(ctx context.Context, eventType journal.EventType, limit int) ([]journal.Event, error)
}

// Server 持有路由与依赖。
type Server struct {
	cfg    config.ServerConfig
	orders OrderPlacer
	hedges HedgeApplier
	events EventLister
	logger *zap.Logger

	httpServer *http.Server
}

// New 组装 HTTP 服务。
func New(cfg config.ServerConfig, orders OrderPlacer, hedges HedgeApplier, events EventLister, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:    cfg,
		orders: orders,
		hedges: hedges,
		events: events,
		logger: logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	guarded := router.PathPrefix("/").Subrouter()
	guarded.Use(newAllowlist(cfg.Whitelist, logger).middleware)
	guarded.HandleFunc("/", s.handleOrder).Methods(http.MethodPost)
	guarded.HandleFunc("/order", s.handleOrder).Methods(http.MethodPost)
	guarded.HandleFunc("/hedge", s.handleHedge).Methods(http.MethodPost)
	guarded.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	return s
}

// Handler 返回完整路由，供测试直接驱动。
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run 启动监听并阻塞直到 ctx 结束，随后按配置的超时优雅下线。
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP 服务启动", zap.String("addr", s.cfg.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx := context.Background()
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var payload OrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("无法解析请求体"))
		return
	}
	if !s.authorized(payload.Password) {
		writeJSON(w, http.StatusForbidden, errorBody("口令不正确"))
		return
	}

	spec, err := payload.Spec()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	outcome, err := s.orders.PlaceOrder(r.Context(), spec)
	if err != nil {
		s.writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"result":   "success",
		"order_id": outcome.Result.OrderID,
		"label":    outcome.Display.Label,
		"value":    outcome.Display.Value,
	})
}

func (s *Server) handleHedge(w http.ResponseWriter, r *http.Request) {
	var payload HedgePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("无法解析请求体"))
		return
	}
	if !s.authorized(payload.Password) {
		writeJSON(w, http.StatusForbidden, errorBody("口令不正确"))
		return
	}

	req, err := payload.Request()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	if err := s.hedges.Apply(r.Context(), req); err != nil {
		s.writeHedgeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusNotFound, errorBody("流水服务未启用"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("limit 必须为整数"))
			return
		}
		limit = parsed
	}

	events, err := s.events.ListEvents(r.Context(), journal.EventType(r.URL.Query().Get("type")), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// writeOrderError 把内部错误映射到 HTTP 状态码。
// 场所侧失败统一映射为 502，调用方据此区分信号问题与场所问题。
func (s *Server) writeOrderError(w http.ResponseWriter, err error) {
	var verr *order.ValidationError
	var apiErr *venue.APIError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, venue.ErrUnsupportedVenue):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.As(err, &apiErr):
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	}
}

func (s *Server) writeHedgeError(w http.ResponseWriter, err error) {
	var verr *order.ValidationError
	var incErr *hedge.InconsistencyError
	var legErr *hedge.LegFailureError
	var compErr *hedge.CompensationError
	switch {
	case errors.Is(err, hedge.ErrNothingToClose):
		writeJSON(w, http.StatusOK, map[string]string{"result": "nothing_to_close"})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.As(err, &incErr):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.As(err, &legErr):
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	case errors.As(err, &compErr):
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	}
}

func (s *Server) authorized(password string) bool {
	if s.cfg.Password == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"result": "error", "message": msg}
}

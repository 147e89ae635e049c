// Package monitor exposes a read-only HTTP API over the live risk
// state and the trade database.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/janosik-trading/janosik/market"
	"github.com/janosik-trading/janosik/risk"
	"github.com/janosik-trading/janosik/store"
)

const (
	defaultTradeLimit  = 50
	defaultStatsDays   = 30
	defaultCandleLimit = 100
	maxCandleLimit     = 1000
	requestTimeout     = 10 * time.Second
)

// RiskSource reports the current account risk snapshot.
type RiskSource interface {
	Metrics(ctx context.Context) (risk.Metrics, error)
}

// DataStore is the subset of the database layer the API reads from.
type DataStore interface {
	OpenTrades(ctx context.Context, strategyID int64) ([]store.Trade, error)
	RecentClosedTrades(ctx context.Context, strategyID int64, limit int) ([]store.Trade, error)
	PerformanceStats(ctx context.Context, days int) ([]store.DailyStats, error)
	ActiveStrategies(ctx context.Context) ([]store.StrategyRow, error)
	Candles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error)
}

// Server serves the monitoring endpoints on a dedicated listener.
type Server struct {
	listen string
	risk   RiskSource
	store  DataStore
	logger *slog.Logger
	srv    *http.Server
}

// NewServer builds a monitoring server listening on addr.
func NewServer(addr string, rs RiskSource, ds DataStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listen: addr,
		risk:   rs,
		store:  ds,
		logger: logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	api.GET("/risk", s.handleRisk)
	api.GET("/trades", s.handleTrades)
	api.GET("/stats", s.handleStats)
	api.GET("/strategies", s.handleStrategies)
	api.GET("/candles", s.handleCandles)

	return router
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:    s.listen,
		Handler: s.Router(),
	}
	go func() {
		s.logger.Info("monitor listening", "addr", s.listen)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitor server failed", "error", err)
		}
	}()
}

// Stop shuts the server down, waiting for in-flight requests
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRisk(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	m, err := s.risk.Metrics(ctx)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// tradeView is the wire shape for a trade row. Nullable columns
// stay pointers so open trades serialize with null exits.
type tradeView struct {
	ID         int64      `json:"id"`
	StrategyID int64      `json:"strategy_id"`
	Symbol     string     `json:"symbol"`
	Direction  string     `json:"direction"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price"`
	LotSize    float64    `json:"lot_size"`
	ProfitLoss *float64   `json:"profit_loss"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time"`
	Status     string     `json:"status"`
}

func toTradeViews(trades []store.Trade) []tradeView {
	out := make([]tradeView, len(trades))
	for i, t := range trades {
		out[i] = tradeView{
			ID:         t.ID,
			StrategyID: t.StrategyID,
			Symbol:     t.Symbol,
			Direction:  t.Direction,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			LotSize:    t.LotSize,
			ProfitLoss: t.ProfitLoss,
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			Status:     t.Status,
		}
	}
	return out
}

func (s *Server) handleTrades(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	status := c.DefaultQuery("status", "closed")
	limit, err := intQuery(c, "limit", defaultTradeLimit)
	if err != nil {
		s.badRequest(c, "limit must be a positive integer")
		return
	}

	var trades []store.Trade
	switch status {
	case "open":
		trades, err = s.store.OpenTrades(ctx, 0)
	case "closed":
		trades, err = s.store.RecentClosedTrades(ctx, 0, limit)
	default:
		s.badRequest(c, "status must be open or closed")
		return
	}
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, toTradeViews(trades))
}

type dailyStatsView struct {
	Date         string  `json:"date"`
	TradesCount  int     `json:"trades_count"`
	TotalPL      float64 `json:"total_pl"`
	WinRate      float64 `json:"win_rate"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	DailyLossPct float64 `json:"daily_loss_pct"`
}

func (s *Server) handleStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	days, err := intQuery(c, "days", defaultStatsDays)
	if err != nil {
		s.badRequest(c, "days must be a positive integer")
		return
	}

	stats, err := s.store.PerformanceStats(ctx, days)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]dailyStatsView, len(stats))
	for i, st := range stats {
		out[i] = dailyStatsView{
			Date:         st.Date.Format("2006-01-02"),
			TradesCount:  st.TradesCount,
			TotalPL:      st.TotalPL,
			WinRate:      st.WinRate,
			MaxDrawdown:  st.MaxDrawdown,
			DailyLossPct: st.DailyLossPct,
		}
	}
	c.JSON(http.StatusOK, out)
}

type strategyView struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
	Allocation float64        `json:"allocation"`
	Active     bool           `json:"active"`
}

func (s *Server) handleStrategies(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	rows, err := s.store.ActiveStrategies(ctx)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]strategyView, len(rows))
	for i, r := range rows {
		out[i] = strategyView{
			ID:         r.ID,
			Name:       r.Name,
			Type:       r.Type,
			Parameters: r.Parameters,
			Allocation: r.Allocation,
			Active:     r.Active,
		}
	}
	c.JSON(http.StatusOK, out)
}

type candleView struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

func (s *Server) handleCandles(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	symbol := c.Query("symbol")
	if symbol == "" {
		s.badRequest(c, "symbol is required")
		return
	}

	tf, err := market.ParseTimeframe(c.DefaultQuery("timeframe", "H1"))
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}

	limit, err := intQuery(c, "limit", defaultCandleLimit)
	if err != nil {
		s.badRequest(c, "limit must be a positive integer")
		return
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}

	candles, err := s.store.Candles(ctx, symbol, tf, limit)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]candleView, len(candles))
	for i, cd := range candles {
		out[i] = candleView{
			Time:   cd.Time,
			Open:   cd.Open,
			High:   cd.High,
			Low:    cd.Low,
			Close:  cd.Close,
			Volume: cd.Volume,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timeframe": tf.String(),
		"candles":   out,
	})
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (s *Server) fail(c *gin.Context, code int, err error) {
	s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(code, gin.H{"error": err.Error()})
}

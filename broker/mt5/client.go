// Package mt5 bridges the bot to a MetaTrader 5 terminal through its HTTP
// gateway. The gateway exposes the terminal operations (login, account
// info, candles, ticks, order_send, positions) as JSON endpoints.
package mt5

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/janosik-trading/janosik/broker"
	"github.com/janosik-trading/janosik/config"
	"github.com/janosik-trading/janosik/market"
)

// Terminal order parameters. Deviation is the accepted slippage in points;
// the magic number tags orders so the terminal can tell ours apart from
// manually placed ones.
const (
	defaultDeviation = 20
	magicNumber      = 234000
	orderComment     = "janosik"
)

// Client talks to the MT5 gateway.
type Client struct {
	baseURL    string
	account    string
	password   string
	server     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a gateway client from terminal config.
func NewClient(cfg config.TerminalConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		account:  cfg.Account,
		password: cfg.Password,
		server:   cfg.Server,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Login authenticates the terminal session. The gateway keeps the session
// alive; subsequent calls fail with 401 when it expires.
func (c *Client) Login(ctx context.Context) error {
	body := map[string]string{
		"account":  c.account,
		"password": c.password,
		"server":   c.server,
	}
	var resp struct {
		Authorized bool   `json:"authorized"`
		Message    string `json:"message"`
	}
	if err := c.post(ctx, "/api/v1/login", body, &resp); err != nil {
		return fmt.Errorf("mt5 login: %w", err)
	}
	if !resp.Authorized {
		return fmt.Errorf("mt5 login failed: %s", resp.Message)
	}
	c.logger.Info("mt5 connected", "account", c.account, "server", c.server)
	return nil
}

type accountResponse struct {
	Login       string  `json:"login"`
	Currency    string  `json:"currency"`
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	MarginFree  float64 `json:"margin_free"`
	MarginLevel float64 `json:"margin_level"`
}

// GetAccount fetches the current account snapshot.
func (c *Client) GetAccount(ctx context.Context) (broker.Account, error) {
	var resp accountResponse
	if err := c.get(ctx, "/api/v1/account", nil, &resp); err != nil {
		return broker.Account{}, fmt.Errorf("mt5 account: %w", err)
	}
	return broker.Account{
		ID:          resp.Login,
		Currency:    resp.Currency,
		Balance:     resp.Balance,
		Equity:      resp.Equity,
		MarginUsed:  resp.Margin,
		FreeMargin:  resp.MarginFree,
		MarginLevel: resp.MarginLevel,
	}, nil
}

type tickResponse struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Time   int64   `json:"time"` // unix seconds
}

// GetTick fetches the current bid/ask for a symbol.
func (c *Client) GetTick(ctx context.Context, symbol string) (market.Tick, error) {
	params := url.Values{"symbol": {symbol}}
	var resp tickResponse
	if err := c.get(ctx, "/api/v1/tick", params, &resp); err != nil {
		return market.Tick{}, fmt.Errorf("mt5 tick %s: %w", symbol, err)
	}
	return market.Tick{
		Symbol: resp.Symbol,
		Bid:    resp.Bid,
		Ask:    resp.Ask,
		Time:   time.Unix(resp.Time, 0).UTC(),
	}, nil
}

type candleResponse struct {
	Symbol  string `json:"symbol"`
	Candles []struct {
		Time   int64   `json:"time"` // unix seconds, candle open
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"tick_volume"`
	} `json:"candles"`
}

// GetCandles fetches the most recent count candles, oldest first.
func (c *Client) GetCandles(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	if count <= 0 {
		count = 500
	}
	params := url.Values{
		"symbol":    {symbol},
		"timeframe": {strconv.Itoa(int(tf))},
		"count":     {strconv.Itoa(count)},
	}
	var resp candleResponse
	if err := c.get(ctx, "/api/v1/candles", params, &resp); err != nil {
		return nil, fmt.Errorf("mt5 candles %s %s: %w", symbol, tf, err)
	}

	candles := make([]market.Candle, 0, len(resp.Candles))
	for _, rc := range resp.Candles {
		candles = append(candles, market.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			Open:      rc.Open,
			High:      rc.High,
			Low:       rc.Low,
			Close:     rc.Close,
			Volume:    rc.Volume,
			Time:      time.Unix(rc.Time, 0).UTC(),
		})
	}
	return candles, nil
}

type orderRequest struct {
	Symbol    string   `json:"symbol"`
	Action    string   `json:"action"` // BUY or SELL
	Volume    float64  `json:"volume"`
	StopLoss  *float64 `json:"sl,omitempty"`
	TakeProf  *float64 `json:"tp,omitempty"`
	Deviation int      `json:"deviation"`
	Magic     int      `json:"magic"`
	Comment   string   `json:"comment"`
	Filling   string   `json:"filling"` // IOC
}

type orderResponse struct {
	Retcode int     `json:"retcode"`
	Ticket  string  `json:"ticket"`
	Price   float64 `json:"price"`
	Volume  float64 `json:"volume"`
	Comment string  `json:"comment"`
	Time    int64   `json:"time"`
}

// retcodeDone is the terminal's TRADE_RETCODE_DONE.
const retcodeDone = 10009

// CreateMarketOrder places an immediate-or-cancel market order.
func (c *Client) CreateMarketOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.OrderFill, error) {
	comment := req.Comment
	if comment == "" {
		comment = orderComment
	}
	body := orderRequest{
		Symbol:    req.Symbol,
		Action:    string(req.Direction),
		Volume:    req.Lots,
		StopLoss:  req.StopLoss,
		TakeProf:  req.TakeProfit,
		Deviation: defaultDeviation,
		Magic:     magicNumber,
		Comment:   comment,
		Filling:   "IOC",
	}

	var resp orderResponse
	if err := c.post(ctx, "/api/v1/order", body, &resp); err != nil {
		return broker.OrderFill{}, fmt.Errorf("mt5 order %s %s: %w", req.Direction, req.Symbol, err)
	}
	if resp.Retcode != retcodeDone {
		return broker.OrderFill{}, fmt.Errorf("mt5 order rejected (retcode %d): %s", resp.Retcode, resp.Comment)
	}

	c.logger.Info("order filled",
		"symbol", req.Symbol,
		"direction", req.Direction,
		"lots", resp.Volume,
		"price", resp.Price,
		"ticket", resp.Ticket,
	)

	return broker.OrderFill{
		Ticket: resp.Ticket,
		Symbol: req.Symbol,
		Lots:   resp.Volume,
		Price:  resp.Price,
		Time:   time.Unix(resp.Time, 0).UTC(),
	}, nil
}

// ClosePosition closes all open positions for a symbol and returns the
// closed tickets.
func (c *Client) ClosePosition(ctx context.Context, symbol string) ([]string, error) {
	body := map[string]any{
		"symbol":    symbol,
		"deviation": defaultDeviation,
		"magic":     magicNumber,
	}
	var resp struct {
		Closed []string `json:"closed"`
	}
	if err := c.post(ctx, "/api/v1/close", body, &resp); err != nil {
		return nil, fmt.Errorf("mt5 close %s: %w", symbol, err)
	}
	return resp.Closed, nil
}

type positionResponse struct {
	Positions []struct {
		Ticket       string  `json:"ticket"`
		Symbol       string  `json:"symbol"`
		Type         string  `json:"type"` // BUY or SELL
		Volume       float64 `json:"volume"`
		PriceOpen    float64 `json:"price_open"`
		PriceCurrent float64 `json:"price_current"`
		Profit       float64 `json:"profit"`
		Time         int64   `json:"time"`
	} `json:"positions"`
}

// OpenPositions lists open positions, optionally filtered by symbol.
func (c *Client) OpenPositions(ctx context.Context, symbol string) ([]broker.Position, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var resp positionResponse
	if err := c.get(ctx, "/api/v1/positions", params, &resp); err != nil {
		return nil, fmt.Errorf("mt5 positions: %w", err)
	}

	out := make([]broker.Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		out = append(out, broker.Position{
			Ticket:       p.Ticket,
			Symbol:       p.Symbol,
			Direction:    broker.Direction(p.Type),
			Lots:         p.Volume,
			OpenPrice:    p.PriceOpen,
			CurrentPrice: p.PriceCurrent,
			Profit:       p.Profit,
			OpenTime:     time.Unix(p.Time, 0).UTC(),
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	apiURL := c.baseURL + path
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

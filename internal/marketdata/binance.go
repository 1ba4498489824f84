package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/pkg/exception"
)

const (
	DefaultBinanceURL = "https://api.binance.com"

	defaultBinanceTimeout = 10 * time.Second
	defaultBinanceRetry   = 2
	maxBinanceKlines      = 1000
)

var _ Feed = (*Binance)(nil)

// BinanceOption configures the REST client.
type BinanceOption struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

// Binance reads public spot klines over REST. No credentials are needed.
type Binance struct {
	client *resty.Client
}

func NewBinance(opt BinanceOption) *Binance {
	if opt.BaseURL == "" {
		opt.BaseURL = DefaultBinanceURL
	}
	if opt.Timeout <= 0 {
		opt.Timeout = defaultBinanceTimeout
	}
	if opt.RetryCount < 0 {
		opt.RetryCount = 0
	} else if opt.RetryCount == 0 {
		opt.RetryCount = defaultBinanceRetry
	}
	if opt.RetryWait <= 0 {
		opt.RetryWait = 500 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(opt.BaseURL).
		SetTimeout(opt.Timeout).
		SetRetryCount(opt.RetryCount).
		SetRetryWaitTime(opt.RetryWait).
		SetRetryMaxWaitTime(4 * opt.RetryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || transientStatus(resp.StatusCode())
		})

	return &Binance{client: client}
}

// Symbol converts "BTC/USDT" to Binance's "BTCUSDT".
func Symbol(instrument string) string {
	return strings.ToUpper(strings.ReplaceAll(instrument, "/", ""))
}

func (b *Binance) FetchCandles(ctx context.Context, instrument, timeframe string, limit int) ([]model.Candle, error) {
	if limit <= 0 || limit > maxBinanceKlines {
		limit = maxBinanceKlines
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   Symbol(instrument),
			"interval": timeframe,
			"limit":    strconv.Itoa(limit),
		}).
		Get("/api/v3/klines")
	if err := check(resp, err, "klines "+instrument); err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode klines "+instrument), exception.ErrValidation)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := parseKline(instrument, row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func (b *Binance) CurrentPrice(ctx context.Context, instrument string) (decimal.Decimal, error) {
	var ticker struct {
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
	}
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", Symbol(instrument)).
		SetResult(&ticker).
		Get("/api/v3/ticker/price")
	if err := check(resp, err, "ticker "+instrument); err != nil {
		return decimal.Zero, err
	}
	if !ticker.Price.IsPositive() {
		return decimal.Zero, errors.Wrapf(exception.ErrInvalidPrice, "ticker %s: %s", instrument, ticker.Price)
	}
	return ticker.Price, nil
}

// kline layout: [openTime, open, high, low, close, volume, closeTime, ...]
func parseKline(instrument string, row []json.RawMessage) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, errors.Wrapf(exception.ErrValidation, "kline %s: %d fields", instrument, len(row))
	}

	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return model.Candle{}, errors.Mark(errors.Wrap(err, "kline open time"), exception.ErrValidation)
	}

	var values [5]decimal.Decimal
	for i := range values {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return model.Candle{}, errors.Mark(errors.Wrap(err, "kline value"), exception.ErrValidation)
		}
		v, err := model.ParseDecimal(s)
		if err != nil {
			return model.Candle{}, err
		}
		values[i] = v
	}

	return model.NewCandle(instrument, time.UnixMilli(openTime), values[0], values[1], values[2], values[3], values[4])
}

func check(resp *resty.Response, err error, what string) error {
	if err != nil {
		return errors.Mark(errors.Wrap(err, what), exception.ErrTransientIO)
	}
	code := resp.StatusCode()
	if code == http.StatusOK {
		return nil
	}
	if transientStatus(code) {
		return errors.Wrapf(exception.ErrTransientIO, "%s: status %d", what, code)
	}
	return errors.Wrapf(exception.ErrValidation, "%s: status %d: %s", what, code, resp.String())
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusTeapot || code >= http.StatusInternalServerError
}

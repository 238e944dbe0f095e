package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"SignalPulse/internal/model"
)

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooFetcher{
		BaseURL: "https://query1.finance.yahoo.com",
		Client:  &http.Client{Transport: transport},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"XAUUSD": "GC=F",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	s := strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
	if mapped, ok := f.SymbolMap[s]; ok {
		return mapped
	}
	if len(s) == 6 && isAlpha(s) {
		return s + "=X"
	}
	return s
}

var yahooIntervals = map[model.Timeframe]string{
	model.TF1m:  "1m",
	model.TF5m:  "5m",
	model.TF15m: "15m",
	model.TF30m: "30m",
	model.TF1h:  "60m",
}

// yahooRange picks the smallest range that covers count bars. Intraday
// history is limited to 7 days at 1m and 60 days otherwise.
func yahooRange(tf model.Timeframe, count int) string {
	days := count*tf.Minutes()/(60*24) + 2
	switch {
	case tf == model.TF1m || days <= 5:
		if days <= 1 {
			return "1d"
		}
		return "5d"
	case days <= 30:
		return "1mo"
	default:
		return "60d"
	}
}

func (f *YahooFetcher) FetchBars(ctx context.Context, symbol string, tf model.Timeframe, count int) ([]model.Bar, error) {
	interval, ok := yahooIntervals[tf]
	if !ok {
		return nil, fmt.Errorf("%w: yahoo has no %s interval", ErrUnavailable, tf)
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), interval, yahooRange(tf, count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo fetch: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: yahoo status %d", ErrUnavailable, resp.StatusCode)
	}

	bars, err := parseYahooChart(body)
	if err != nil {
		return nil, err
	}
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return bars, nil
}

func parseYahooChart(body []byte) ([]model.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: yahoo malformed payload", ErrUnavailable)
	}
	doc := gjson.ParseBytes(body)
	if desc := doc.Get("chart.error.description"); desc.Exists() {
		return nil, fmt.Errorf("%w: yahoo api error: %s", ErrUnavailable, desc.String())
	}
	result := doc.Get("chart.result.0")
	stamps := result.Get("timestamp").Array()
	if len(stamps) == 0 {
		return nil, fmt.Errorf("%w: yahoo no data returned", ErrUnavailable)
	}
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()

	bars := make([]model.Bar, 0, len(stamps))
	for i, ts := range stamps {
		if i >= len(opens) || i >= len(highs) || i >= len(lows) || i >= len(closes) {
			break
		}
		// null points (market pauses) parse to 0 and are dropped by normalizeBars
		bars = append(bars, model.Bar{
			Time:  time.Unix(ts.Int(), 0).UTC(),
			Open:  opens[i].Float(),
			High:  highs[i].Float(),
			Low:   lows[i].Float(),
			Close: closes[i].Float(),
		})
	}
	bars = normalizeBars(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: yahoo no usable bars", ErrUnavailable)
	}
	return bars, nil
}

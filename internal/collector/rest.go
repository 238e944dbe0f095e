package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"SignalPulse/internal/model"
)

// RestFetcher implements Fetcher against a time_series REST API
// (Twelve Data compatible).
type RestFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRestFetcher creates a fetcher with optional proxy support. The client
// has no timeout of its own; every call is bounded by the caller's context.
func NewRestFetcher(baseURL, apiKey, proxyURL string) *RestFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RestFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Transport: transport},
	}
}

func (f *RestFetcher) Name() string { return "rest" }

// restSymbol turns "EURUSD" into the provider's "EUR/USD" pair notation.
func restSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if len(s) == 6 && !strings.Contains(s, "/") && isAlpha(s) {
		return s[:3] + "/" + s[3:]
	}
	return s
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (f *RestFetcher) FetchBars(ctx context.Context, symbol string, tf model.Timeframe, count int) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("symbol", restSymbol(symbol))
	q.Set("interval", string(tf))
	q.Set("outputsize", strconv.Itoa(count))
	q.Set("timezone", "UTC")
	q.Set("order", "ASC")
	if f.APIKey != "" {
		q.Set("apikey", f.APIKey)
	}
	endpoint := f.BaseURL + "/time_series?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return parseTimeSeries(body)
}

func parseTimeSeries(body []byte) ([]model.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed payload", ErrUnavailable)
	}
	doc := gjson.ParseBytes(body)
	if doc.Get("status").String() == "error" {
		return nil, fmt.Errorf("%w: provider error: %s", ErrUnavailable, doc.Get("message").String())
	}
	values := doc.Get("values")
	if !values.IsArray() || len(values.Array()) == 0 {
		return nil, fmt.Errorf("%w: no values", ErrUnavailable)
	}

	var bars []model.Bar
	for _, v := range values.Array() {
		ts, err := parseProviderTime(v.Get("datetime").String())
		if err != nil {
			continue
		}
		bars = append(bars, model.Bar{
			Time:  ts,
			Open:  v.Get("open").Float(),
			High:  v.Get("high").Float(),
			Low:   v.Get("low").Float(),
			Close: v.Get("close").Float(),
		})
	}
	bars = normalizeBars(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no usable bars", ErrUnavailable)
	}
	return bars, nil
}

func parseProviderTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad datetime %q", s)
}

package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"SignalPulse/internal/model"
)

type apiCall struct {
	Method string
	Body   map[string]any
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	updates string
}

func (f *fakeAPI) handler(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	if method == "getUpdates" {
		f.mu.Lock()
		body := f.updates
		f.updates = `{"ok":true,"result":[]}`
		f.mu.Unlock()
		io.WriteString(w, body)
		return
	}
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Body: payload})
	f.mu.Unlock()
	io.WriteString(w, `{"ok":true}`)
}

func (f *fakeAPI) byMethod(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func newTestNotifier(t *testing.T, api *fakeAPI) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(srv.Close)
	return NewTelegramNotifier("TOKEN", "42", srv.URL, "")
}

type recordingHandler struct {
	commands  []string
	callbacks []string
	onCommand func()
}

func (h *recordingHandler) HandleCommand(_ context.Context, text string) string {
	h.commands = append(h.commands, text)
	if h.onCommand != nil {
		h.onCommand()
	}
	return "ok: " + text
}

func (h *recordingHandler) HandleCallback(_ context.Context, data string) string {
	h.callbacks = append(h.callbacks, data)
	return "<b>Recorded</b> win\nmore"
}

func TestSendSignalAttachesOutcomeButtons(t *testing.T) {
	api := &fakeAPI{}
	tn := newTestNotifier(t, api)

	sig := &model.Signal{
		ID: "sig-1", Symbol: "EURUSD", Direction: model.DirectionBuy, Confidence: 0.8,
		Timeframe: model.TF5m, Amount: decimal.NewFromInt(3), Time: time.Now(),
	}
	if err := tn.SendSignal(context.Background(), sig); err != nil {
		t.Fatalf("send signal: %v", err)
	}
	sent := api.byMethod("sendMessage")
	if len(sent) != 1 {
		t.Fatalf("expected 1 sendMessage, got %d", len(sent))
	}
	if sent[0].Body["chat_id"] != "42" {
		t.Errorf("chat id: %v", sent[0].Body["chat_id"])
	}
	markup, _ := json.Marshal(sent[0].Body["reply_markup"])
	for _, want := range []string{"outcome:sig-1:win", "outcome:sig-1:loss", "outcome:sig-1:skip"} {
		if !strings.Contains(string(markup), want) {
			t.Errorf("reply markup missing %s: %s", want, markup)
		}
	}
}

func TestSendReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", srv.URL, "")
	if err := tn.Send(context.Background(), "hi"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestSendWithRetryRecoversFromTransientError(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			http.Error(w, `{"ok":false}`, http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", srv.URL, "")
	if err := tn.SendWithRetry(context.Background(), "hi", 0); err == nil {
		t.Fatal("expected error without retries")
	}
	if err := tn.SendWithRetry(context.Background(), "hi", 1); err != nil {
		t.Fatalf("send with retry: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Errorf("attempts: got %d, want 2", attempts)
	}
}

func TestProcessUpdateCommand(t *testing.T) {
	api := &fakeAPI{}
	tn := newTestNotifier(t, api)
	h := &recordingHandler{}

	u, err := ParseUpdate([]byte(`{"update_id":7,"message":{"message_id":1,"text":" /stats ","chat":{"id":42}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tn.ProcessUpdate(context.Background(), u, h)

	if len(h.commands) != 1 || h.commands[0] != "/stats" {
		t.Fatalf("commands: %v", h.commands)
	}
	sent := api.byMethod("sendMessage")
	if len(sent) != 1 || sent[0].Body["text"] != "ok: /stats" {
		t.Fatalf("reply not delivered: %+v", sent)
	}
}

func TestProcessUpdateIgnoresOtherChats(t *testing.T) {
	api := &fakeAPI{}
	tn := newTestNotifier(t, api)
	h := &recordingHandler{}

	u, _ := ParseUpdate([]byte(`{"update_id":8,"message":{"message_id":1,"text":"/stop","chat":{"id":99}}}`))
	tn.ProcessUpdate(context.Background(), u, h)

	if len(h.commands) != 0 {
		t.Fatalf("command from foreign chat was handled: %v", h.commands)
	}
}

func TestProcessUpdateCallback(t *testing.T) {
	api := &fakeAPI{}
	tn := newTestNotifier(t, api)
	h := &recordingHandler{}

	u, _ := ParseUpdate([]byte(`{"update_id":9,"callback_query":{"id":"cb1","data":"outcome:abc:win",
		"message":{"message_id":5,"chat":{"id":42}}}}`))
	tn.ProcessUpdate(context.Background(), u, h)

	if len(h.callbacks) != 1 || h.callbacks[0] != "outcome:abc:win" {
		t.Fatalf("callbacks: %v", h.callbacks)
	}
	answers := api.byMethod("answerCallbackQuery")
	if len(answers) != 1 || answers[0].Body["text"] != "Recorded win" {
		t.Fatalf("callback answer: %+v", answers)
	}
	if len(api.byMethod("editMessageReplyMarkup")) != 1 {
		t.Error("outcome buttons not cleared")
	}
}

func TestStartPollingDispatchesUntilCancelled(t *testing.T) {
	api := &fakeAPI{updates: `{"ok":true,"result":[{"update_id":3,"message":{"message_id":1,"text":"/help","chat":{"id":42}}}]}`}
	tn := newTestNotifier(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	h := &recordingHandler{onCommand: cancel}

	done := make(chan struct{})
	go func() {
		tn.StartPolling(ctx, h)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop after cancel")
	}
	if len(h.commands) != 1 || h.commands[0] != "/help" {
		t.Fatalf("commands: %v", h.commands)
	}
}

func TestParseOutcomeCallback(t *testing.T) {
	id, o, err := ParseOutcomeCallback(OutcomeCallbackData("3f2b-uuid", model.OutcomeLoss))
	if err != nil || id != "3f2b-uuid" || o != model.OutcomeLoss {
		t.Fatalf("round trip: %q %q %v", id, o, err)
	}
	for _, bad := range []string{"", "outcome:", "outcome::win", "outcome:id:draw", "vote:id:win"} {
		if _, _, err := ParseOutcomeCallback(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestFormatSignal(t *testing.T) {
	msg := FormatSignal(&model.Signal{
		Symbol: "GBPUSD", Direction: model.DirectionSell, Confidence: 0.75,
		Timeframe: model.TF15m, Amount: decimal.NewFromInt(5), Time: time.Date(2024, 1, 2, 3, 15, 0, 0, time.UTC),
		Reason: "rsi<50 & macd",
	})
	for _, want := range []string{"GBPUSD SELL", "75%", "15min", "rsi&lt;50 &amp; macd"} {
		if !strings.Contains(msg, want) {
			t.Errorf("formatted signal missing %q:\n%s", want, msg)
		}
	}
}

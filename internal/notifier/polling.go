package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"SignalPulse/internal/model"
)

const outcomeCallbackPrefix = "outcome:"

// CommandHandler receives operator input from any transport.
type CommandHandler interface {
	HandleCommand(ctx context.Context, text string) string
	HandleCallback(ctx context.Context, data string) string
}

type chat struct {
	ID int64 `json:"id"`
}

type message struct {
	MessageID int    `json:"message_id"`
	Text      string `json:"text"`
	Chat      chat   `json:"chat"`
}

// Update is the subset of a Telegram update the bot consumes.
type Update struct {
	UpdateID      int      `json:"update_id"`
	Message       *message `json:"message"`
	CallbackQuery *struct {
		ID      string   `json:"id"`
		Data    string   `json:"data"`
		Message *message `json:"message"`
	} `json:"callback_query"`
}

// ParseUpdate decodes a single update, as delivered to the webhook.
func ParseUpdate(body []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(body, &u); err != nil {
		return Update{}, fmt.Errorf("decode update: %w", err)
	}
	return u, nil
}

// OutcomeCallbackData builds the inline-button payload for a signal outcome.
func OutcomeCallbackData(signalID string, o model.Outcome) string {
	return outcomeCallbackPrefix + signalID + ":" + string(o)
}

// ParseOutcomeCallback splits "outcome:<id>:<outcome>".
func ParseOutcomeCallback(data string) (string, model.Outcome, error) {
	rest, ok := strings.CutPrefix(data, outcomeCallbackPrefix)
	if !ok {
		return "", "", fmt.Errorf("unknown callback %q", data)
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", "", fmt.Errorf("malformed outcome callback %q", data)
	}
	o, err := model.ParseOutcome(rest[i+1:])
	if err != nil {
		return "", "", err
	}
	return rest[:i], o, nil
}

// authorized reports whether chatID may issue commands. An empty ChatID
// accepts everyone.
func (t *TelegramNotifier) authorized(chatID int64) bool {
	return t.ChatID == "" || t.ChatID == strconv.FormatInt(chatID, 10)
}

// ProcessUpdate routes one update to the handler and delivers the reply.
// Long polling and the webhook share it.
func (t *TelegramNotifier) ProcessUpdate(ctx context.Context, u Update, h CommandHandler) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.Message == nil || !t.authorized(cq.Message.Chat.ID) {
			log.Warn().Int("update_id", u.UpdateID).Msg("ignoring callback from unauthorized chat")
			return
		}
		chatID := strconv.FormatInt(cq.Message.Chat.ID, 10)
		reply := h.HandleCallback(ctx, cq.Data)
		if err := t.answerCallback(ctx, cq.ID, firstLine(reply)); err != nil {
			log.Error().Err(err).Msg("answer callback")
		}
		if err := t.clearButtons(ctx, chatID, cq.Message.MessageID); err != nil {
			log.Debug().Err(err).Msg("clear outcome buttons")
		}
		if reply != "" {
			if err := t.SendTo(ctx, chatID, reply); err != nil {
				log.Error().Err(err).Msg("send reply")
			}
		}

	case u.Message != nil && strings.TrimSpace(u.Message.Text) != "":
		if !t.authorized(u.Message.Chat.ID) {
			log.Warn().Int64("chat_id", u.Message.Chat.ID).Msg("ignoring command from unauthorized chat")
			return
		}
		text := strings.TrimSpace(u.Message.Text)
		log.Info().Str("command", text).Msg("received command")
		if reply := h.HandleCommand(ctx, text); reply != "" {
			if err := t.SendTo(ctx, strconv.FormatInt(u.Message.Chat.ID, 10), reply); err != nil {
				log.Error().Err(err).Msg("send reply")
			}
		}
	}
}

// StartPolling begins long-polling for Telegram commands. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, h CommandHandler) {
	offset := 0
	client := &http.Client{Timeout: 35 * time.Second}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("telegram polling stopped")
			return
		default:
		}

		q := url.Values{}
		q.Set("offset", strconv.Itoa(offset))
		q.Set("timeout", "30")
		q.Set("allowed_updates", `["message","callback_query"]`)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.methodURL("getUpdates")+"?"+q.Encode(), nil)
		if err != nil {
			log.Error().Err(err).Msg("create polling request")
			sleepCtx(ctx, 5*time.Second)
			continue
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("polling request failed")
			sleepCtx(ctx, 5*time.Second)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			log.Warn().Err(err).Msg("read polling response")
			continue
		}

		var result struct {
			OK     bool     `json:"ok"`
			Result []Update `json:"result"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			log.Warn().Err(err).Msg("decode polling response")
			sleepCtx(ctx, 5*time.Second)
			continue
		}

		for _, update := range result.Result {
			offset = update.UpdateID + 1
			t.ProcessUpdate(ctx, update, h)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	// answerCallbackQuery rejects text over 200 characters.
	if r := []rune(s); len(r) > 190 {
		s = string(r[:190])
	}
	return stripTags(s)
}

func stripTags(s string) string {
	var b strings.Builder
	in := false
	for _, r := range s {
		switch {
		case r == '<':
			in = true
		case r == '>':
			in = false
		case !in:
			b.WriteRune(r)
		}
	}
	return b.String()
}

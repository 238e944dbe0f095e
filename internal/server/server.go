package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"SignalPulse/internal/metrics"
	"SignalPulse/internal/model"
	"SignalPulse/internal/notifier"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// RunSource reports the autopoll state for /health.
type RunSource interface {
	Run() model.RunState
}

// UpdateProcessor handles a Telegram update delivered to the webhook.
type UpdateProcessor interface {
	Ready() bool
	ProcessUpdate(ctx context.Context, u notifier.Update, h notifier.CommandHandler)
}

// Options configure the HTTP surface.
type Options struct {
	Addr          string
	WebhookSecret string
	HasBotToken   bool
}

// Server serves /health, /metrics and /webhook.
type Server struct {
	echo *echo.Echo
	opts Options
	run  RunSource
	tg   UpdateProcessor
	cmds notifier.CommandHandler
}

// New builds the server. tg may be nil when Telegram is not configured.
func New(opts Options, run RunSource, tg UpdateProcessor, cmds notifier.CommandHandler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, opts: opts, run: run, tg: tg, cmds: cmds}
	e.Use(recoverer(), requestLogging())
	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.POST("/webhook", s.webhook)
	return s
}

// Start listens in the background.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		if err := s.echo.Start(s.opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	log.Info().Msg("http server stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

type healthResponse struct {
	OK            bool   `json:"ok"`
	TelegramReady bool   `json:"telegram_ready"`
	HasBotToken   bool   `json:"has_bot_token"`
	Running       bool   `json:"running"`
	Phase         string `json:"phase"`
}

func (s *Server) health(c echo.Context) error {
	run := s.run.Run()
	phase := run.Phase
	if phase == "" {
		phase = model.PhaseIdle
	}
	return c.JSON(http.StatusOK, healthResponse{
		OK:            true,
		TelegramReady: s.tg != nil && s.tg.Ready(),
		HasBotToken:   s.opts.HasBotToken,
		Running:       run.Running(),
		Phase:         string(phase),
	})
}

func (s *Server) webhook(c echo.Context) error {
	if s.opts.WebhookSecret != "" && c.Request().Header.Get(secretHeader) != s.opts.WebhookSecret {
		return c.JSON(http.StatusForbidden, map[string]string{"detail": "Invalid secret token"})
	}
	if s.tg == nil || !s.tg.Ready() {
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Telegram not initialized (missing BOT_TOKEN)"})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "read body"})
	}
	u, err := notifier.ParseUpdate(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
	}
	s.tg.ProcessUpdate(c.Request().Context(), u, s.cmds)
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func recoverer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("http handler panic")
					_ = c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Internal Server Error"})
				}
			}()
			return next(c)
		}
	}
}

func requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			req := c.Request()
			log.Debug().Str("method", req.Method).Str("uri", req.RequestURI).
				Int("status", c.Response().Status).Dur("latency", time.Since(start)).Msg("http request")
			return err
		}
	}
}

package sources

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/cashflowly/mpesa-listener/internal/config"
	"github.com/cashflowly/mpesa-listener/internal/logging"
	"github.com/cashflowly/mpesa-listener/internal/runtime"
	"github.com/cashflowly/mpesa-listener/internal/transport"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body, prefixed
// with "sha256=".
const SignatureHeader = "X-Signature-256"

// CapabilityChecker answers capability queries for GET /v1/capability.
type CapabilityChecker interface {
	CheckCapability(ctx context.Context) (runtime.CapabilityResponse, error)
}

// DeliveryRequest is the JSON body of POST /v1/sms. PDUs are hex encoded and
// include the SMSC prefix. An empty action means SMS_RECEIVED.
type DeliveryRequest struct {
	ID     string   `json:"id"`
	Action string   `json:"action"`
	PDUs   []string `json:"pdus"`
}

// DeliveryResponse acknowledges an accepted delivery.
type DeliveryResponse struct {
	EventID   string `json:"event_id"`
	Fragments int    `json:"fragments"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var _ transport.Source = (*Webhook)(nil)

// Webhook receives delivery events over HTTP.
type Webhook struct {
	addr            string
	secret          string
	maxBodyBytes    int64
	shutdownTimeout time.Duration

	capability    CapabilityChecker
	notifications http.Handler

	bound chan net.Addr
}

// WebhookOption configures optional webhook endpoints.
type WebhookOption func(*Webhook)

// WithNotifications mounts h at GET /v1/notifications.
func WithNotifications(h http.Handler) WebhookOption {
	return func(w *Webhook) { w.notifications = h }
}

// NewWebhook creates a webhook source from config.
func NewWebhook(cfg config.WebhookConfig, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		addr:            cfg.Addr,
		secret:          cfg.Secret,
		maxBodyBytes:    cfg.MaxBodyBytes,
		shutdownTimeout: cfg.ShutdownTimeout,
		bound:           make(chan net.Addr, 1),
	}
	if w.maxBodyBytes <= 0 {
		w.maxBodyBytes = 1 << 20
	}
	if w.shutdownTimeout <= 0 {
		w.shutdownTimeout = 5 * time.Second
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetCapability exposes GET /v1/capability backed by c. It must be called
// before Listen or Handler.
func (w *Webhook) SetCapability(c CapabilityChecker) {
	w.capability = c
}

// Bound returns a channel that receives the listening address once Listen
// has bound its socket.
func (w *Webhook) Bound() <-chan net.Addr {
	return w.bound
}

// Listen serves HTTP until ctx is done, then shuts down gracefully.
func (w *Webhook) Listen(ctx context.Context, sink transport.EventSink) error {
	if sink == nil {
		return errors.New("event sink is required")
	}
	srv := &http.Server{
		Handler:           w.Handler(sink),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return fmt.Errorf("webhook listen: %w", err)
	}
	logging.Logger().Info("webhook listening", "addr", ln.Addr().String())
	select {
	case w.bound <- ln.Addr():
	default:
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Logger().Warn("webhook shutdown failed", "err", err)
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("webhook serve: %w", err)
	}
	<-shutdownDone
	return nil
}

// Handler builds the HTTP routes delivering into sink.
func (w *Webhook) Handler(sink transport.EventSink) http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logging.Logger().Debug("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", c.RealIP(),
			)
			return nil
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/v1/sms", func(c echo.Context) error {
		return w.handleDelivery(c, sink)
	})
	if w.capability != nil {
		e.GET("/v1/capability", w.handleCapability)
	}
	if w.notifications != nil {
		e.GET("/v1/notifications", echo.WrapHandler(w.notifications))
	}
	return e
}

func (w *Webhook) handleDelivery(c echo.Context, sink transport.EventSink) error {
	req := c.Request()
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, w.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		}
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "read error"})
	}

	if w.secret != "" && !validSignature(body, req.Header.Get(SignatureHeader), w.secret) {
		logging.Logger().Warn("webhook: invalid signature", "remote_ip", c.RealIP())
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid signature"})
	}

	var delivery DeliveryRequest
	if err := json.Unmarshal(body, &delivery); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
	}

	evt := transport.DeliveryEvent{
		ID:     strings.TrimSpace(delivery.ID),
		Action: strings.TrimSpace(delivery.Action),
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Action == "" {
		evt.Action = transport.ActionSMSReceived
	}
	var invalid int
	evt.PDUs, invalid = decodeFragments(delivery.PDUs)
	if invalid > 0 {
		logging.Logger().Warn("webhook: fragments are not valid hex", "event_id", evt.ID, "invalid", invalid)
	}

	sink.HandleEvent(req.Context(), evt)
	return c.JSON(http.StatusAccepted, DeliveryResponse{EventID: evt.ID, Fragments: len(evt.PDUs)})
}

func (w *Webhook) handleCapability(c echo.Context) error {
	resp, err := w.capability.CheckCapability(c.Request().Context())
	if err != nil {
		logging.Logger().Warn("capability check failed", "err", err)
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// validSignature checks a "sha256=<hex>" HMAC of body.
func validSignature(body []byte, header, secret string) bool {
	if header == "" {
		return false
	}
	return hmac.Equal([]byte(strings.ToLower(header)), []byte(sign(body, secret)))
}

// sign returns the SignatureHeader value for body.
func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

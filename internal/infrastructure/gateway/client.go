package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	domain "zapdesk/services/routing-api/internal/domain/gateway"
	"zapdesk/services/routing-api/internal/infrastructure/metrics"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// Config controls connectivity to the WhatsApp gateway service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the external WhatsApp gateway over its REST API.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

var _ domain.Client = (*Client)(nil)

func NewClient(cfg Config, log zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetHeader("X-Api-Key", cfg.APIKey)
	}
	return &Client{
		http: httpClient,
		log:  log.With().Str("component", "gateway_client").Logger(),
	}
}

type qrResponse struct {
	QRCode    string    `json:"qr_code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

func (c *Client) RequestQR(ctx context.Context, sessionName string) (*domain.QRChallenge, error) {
	var out qrResponse
	resp, err := c.instrument("request_qr", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetResult(&out).
			SetPathParam("session", sessionName).
			Post("/api/sessions/{session}/start")
	})
	if err := c.checkResponse(ctx, resp, err, "QR request"); err != nil {
		return nil, err
	}
	return &domain.QRChallenge{Code: out.QRCode, ExpiresAt: out.ExpiresAt}, nil
}

func (c *Client) SetWebhook(ctx context.Context, sessionName, url string, events []string, encodeMedia bool) error {
	resp, err := c.instrument("set_webhook", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetPathParam("session", sessionName).
			SetBody(map[string]any{
				"mode":         "webhook",
				"url":          url,
				"events":       events,
				"encode_media": encodeMedia,
			}).
			Put("/api/sessions/{session}/delivery")
	})
	return c.checkResponse(ctx, resp, err, "webhook configuration")
}

func (c *Client) SetSocketMode(ctx context.Context, sessionName string) error {
	resp, err := c.instrument("set_socket_mode", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetPathParam("session", sessionName).
			SetBody(map[string]any{"mode": "socket"}).
			Put("/api/sessions/{session}/delivery")
	})
	return c.checkResponse(ctx, resp, err, "socket-mode configuration")
}

func (c *Client) SendMessage(ctx context.Context, sessionName, to, body, mediaRef string) (string, error) {
	var out sendResponse
	resp, err := c.instrument("send_message", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetResult(&out).
			SetPathParam("session", sessionName).
			SetBody(map[string]any{
				"to":        to,
				"body":      body,
				"media_ref": mediaRef,
			}).
			Post("/api/sessions/{session}/messages")
	})
	if err := c.checkResponse(ctx, resp, err, "message send"); err != nil {
		return "", err
	}
	if out.MessageID == "" {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"gateway returned no message id", nil, "90b5e2d7-4f1a-4c68-83d9-a06c7e3f5b12")
	}
	return out.MessageID, nil
}

func (c *Client) Logout(ctx context.Context, sessionName string) error {
	resp, err := c.instrument("logout", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetPathParam("session", sessionName).
			Post("/api/sessions/{session}/logout")
	})
	return c.checkResponse(ctx, resp, err, "logout")
}

func (c *Client) instrument(operation string, call func() (*resty.Response, error)) (*resty.Response, error) {
	start := time.Now()
	resp, err := call()
	metrics.GatewayDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	status := "error"
	if err == nil && resp != nil {
		status = fmt.Sprintf("%d", resp.StatusCode())
	}
	metrics.GatewayRequestsTotal.WithLabelValues(operation, status).Inc()
	return resp, err
}

// checkResponse maps transport failures to retryable error types: timeouts
// to TIMEOUT, everything else to EXTERNAL.
func (c *Client) checkResponse(ctx context.Context, resp *resty.Response, err error, what string) error {
	if err != nil {
		errType := platformerrors.ErrorTypeExternal
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			errType = platformerrors.ErrorTypeTimeout
		}
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, errType,
			fmt.Sprintf("gateway %s failed", what), err, "37f0c8a5-1e9d-4b62-80f4-c25a7d9e0b83")
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		c.log.Warn().
			Int("status", resp.StatusCode()).
			Str("operation", what).
			Str("body", resp.String()).
			Msg("gateway returned error status")
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("gateway %s returned status %d", what, resp.StatusCode()), nil,
			"b24d6f80-9a3c-4e17-85b0-d71f4c2e8a59")
	}
	return nil
}

package backend

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/config"
)

const apiPrefix = "/api/v2"

// Client is the shared HTTP transport for every backend service.
type Client struct {
	HTTP *resty.Client
}

func New(cfg config.BackendConfig) *Client {
	r := resty.New()
	r.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")

	if cfg.Timeout > 0 {
		r.SetTimeout(cfg.Timeout)
	}
	if cfg.Token != "" {
		r.SetAuthToken(cfg.Token)
	}

	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeader("X-Request-ID", uuid.NewString())
		return nil
	})
	r.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.WithFields(log.Fields{
			"method":     resp.Request.Method,
			"url":        resp.Request.URL,
			"status":     resp.StatusCode(),
			"duration":   resp.Time().String(),
			"request_id": resp.Request.Header.Get("X-Request-ID"),
		}).Debug("Backend request")
		return nil
	})

	return &Client{HTTP: r}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.HTTP.R().SetContext(ctx)
}

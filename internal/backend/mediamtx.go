package backend

import (
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Envelope is the uniform {success, data, error} wrapper of the MediaMTX API.
type Envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *EnvelopeError `json:"error,omitempty"`
}

type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (p Page[T]) HasNext() bool {
	return p.Page*p.PageSize < p.Total
}

type MediaServer struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	APIURL          string     `json:"api_url"`
	RTSPURL         string     `json:"rtsp_url,omitempty"`
	RTMPURL         string     `json:"rtmp_url,omitempty"`
	IsActive        bool       `json:"is_active"`
	AuthRequired    bool       `json:"auth_required"`
	Username        string     `json:"username,omitempty"`
	Status          string     `json:"status,omitempty"`
	LastHealthCheck *time.Time `json:"last_health_check,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type MediaServerRequest struct {
	Name         string `json:"name"`
	APIURL       string `json:"api_url"`
	RTSPURL      string `json:"rtsp_url,omitempty"`
	RTMPURL      string `json:"rtmp_url,omitempty"`
	IsActive     bool   `json:"is_active"`
	AuthRequired bool   `json:"auth_required"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
}

type ConnectionTest struct {
	Success   bool    `json:"success"`
	LatencyMs float64 `json:"latency_ms"`
	Version   string  `json:"version,omitempty"`
	Message   string  `json:"message,omitempty"`
}

type AuthSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type MediaMTXService struct {
	c *Client
}

func NewMediaMTXService(c *Client) *MediaMTXService {
	return &MediaMTXService{c: c}
}

const serversPath = apiPrefix + "/mediamtx/servers"

func (s *MediaMTXService) ListServers(ctx context.Context, page, pageSize int) (Page[MediaServer], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var env Envelope[Page[MediaServer]]
	resp, err := s.c.request(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("page_size", strconv.Itoa(pageSize)).
		SetResult(&env).
		Get(serversPath)
	if err := unwrap("list media servers", resp, err, &env); err != nil {
		return Page[MediaServer]{}, err
	}
	return env.Data, nil
}

func (s *MediaMTXService) GetServer(ctx context.Context, id string) (MediaServer, error) {
	var env Envelope[MediaServer]
	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetResult(&env).
		Get(serversPath + "/{id}")
	if err := unwrap("get media server", resp, err, &env); err != nil {
		return MediaServer{}, err
	}
	return env.Data, nil
}

func (s *MediaMTXService) CreateServer(ctx context.Context, req MediaServerRequest) (MediaServer, error) {
	var env Envelope[MediaServer]
	resp, err := s.c.request(ctx).
		SetBody(req).
		SetResult(&env).
		Post(serversPath)
	if err := unwrap("create media server", resp, err, &env); err != nil {
		return MediaServer{}, err
	}
	return env.Data, nil
}

func (s *MediaMTXService) UpdateServer(ctx context.Context, id string, req MediaServerRequest) (MediaServer, error) {
	var env Envelope[MediaServer]
	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetBody(req).
		SetResult(&env).
		Put(serversPath + "/{id}")
	if err := unwrap("update media server", resp, err, &env); err != nil {
		return MediaServer{}, err
	}
	return env.Data, nil
}

func (s *MediaMTXService) DeleteServer(ctx context.Context, id string) error {
	var env Envelope[struct{}]
	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetResult(&env).
		Delete(serversPath + "/{id}")
	return unwrap("delete media server", resp, err, &env)
}

func (s *MediaMTXService) TestConnection(ctx context.Context, id string) (ConnectionTest, error) {
	var env Envelope[ConnectionTest]
	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetResult(&env).
		Post(serversPath + "/{id}/test")
	if err := unwrap("test media server", resp, err, &env); err != nil {
		return ConnectionTest{}, err
	}
	return env.Data, nil
}

func (s *MediaMTXService) Authenticate(ctx context.Context, id, username, password string) (AuthSession, error) {
	var env Envelope[AuthSession]
	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&env).
		Post(serversPath + "/{id}/auth")
	if err := unwrap("authenticate media server", resp, err, &env); err != nil {
		return AuthSession{}, err
	}
	return env.Data, nil
}

func (s *MediaMTXService) Logout(ctx context.Context, id string) error {
	var env Envelope[struct{}]
	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetResult(&env).
		Post(serversPath + "/{id}/logout")
	return unwrap("logout media server", resp, err, &env)
}

type enveloped interface {
	failure() (bool, *EnvelopeError)
}

func (e *Envelope[T]) failure() (bool, *EnvelopeError) {
	return !e.Success, e.Error
}

func unwrap(op string, resp *resty.Response, err error, env enveloped) error {
	if err := checkResponse(op, resp, err); err != nil {
		return err
	}
	failed, envErr := env.failure()
	if !failed {
		return nil
	}
	de := &DomainError{Op: op, StatusCode: resp.StatusCode(), Message: "request was not successful"}
	if envErr != nil {
		de.Code = envErr.Code
		if envErr.Message != "" {
			de.Message = envErr.Message
		}
	}
	return de
}

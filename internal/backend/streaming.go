package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

type StreamOptions struct {
	Quality string `json:"quality"`
	FPS     int    `json:"fps"`
	Format  string `json:"format"`
}

type StreamSession struct {
	CameraID  string    `json:"camera_id"`
	StreamURL string    `json:"stream_url,omitempty"`
	Quality   string    `json:"quality,omitempty"`
	FPS       int       `json:"fps,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

type streamStatus struct {
	Connected bool `json:"connected"`
	Streaming bool `json:"streaming"`
}

type StreamingService struct {
	c *Client
}

func NewStreamingService(c *Client) *StreamingService {
	return &StreamingService{c: c}
}

func (s *StreamingService) Connect(ctx context.Context, id string) error {
	resp, err := s.post(ctx, id, "connect", nil, nil)
	return checkResponse("streaming connect", resp, err)
}

func (s *StreamingService) StartStream(ctx context.Context, id string, opts StreamOptions) (StreamSession, error) {
	var session StreamSession

	resp, err := s.post(ctx, id, "start", opts, &session)
	if err := checkResponse("start stream", resp, err); err != nil {
		return StreamSession{}, err
	}
	if session.CameraID == "" {
		session.CameraID = id
	}
	return session, nil
}

// StopStream treats "not connected" answers (404/409) as already stopped.
func (s *StreamingService) StopStream(ctx context.Context, id string) error {
	resp, err := s.post(ctx, id, "stop", nil, nil)
	if err == nil && (resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusConflict) {
		return nil
	}
	return checkResponse("stop stream", resp, err)
}

func (s *StreamingService) Disconnect(ctx context.Context, id string) error {
	resp, err := s.post(ctx, id, "disconnect", nil, nil)
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	return checkResponse("streaming disconnect", resp, err)
}

func (s *StreamingService) IsConnected(ctx context.Context, id string) (bool, error) {
	var status streamStatus

	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetResult(&status).
		Get(apiPrefix + "/streaming/{id}/status")
	if err := checkResponse("stream status", resp, err); err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return status.Connected, nil
}

func (s *StreamingService) post(ctx context.Context, id, verb string, body, result any) (*resty.Response, error) {
	req := s.c.request(ctx).SetPathParam("id", id)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	return req.Post(apiPrefix + "/streaming/{id}/" + verb)
}

package backend

import (
	"context"
	"strconv"

	"github.com/yourorg/camera-dashboard/internal/camera"
)

// ActionResult is returned by connect/disconnect calls.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CredentialsUpdate struct {
	Username string `json:"username"`
	Password string `json:"password"`
	AuthType string `json:"auth_type,omitempty"`
}

type CameraService struct {
	c *Client
}

func NewCameraService(c *Client) *CameraService {
	return &CameraService{c: c}
}

func (s *CameraService) ListCameras(ctx context.Context, activeOnly bool) ([]camera.Camera, error) {
	var cams []camera.Camera

	resp, err := s.c.request(ctx).
		SetQueryParam("active_only", strconv.FormatBool(activeOnly)).
		SetResult(&cams).
		Get(apiPrefix + "/cameras")
	if err := checkResponse("list cameras", resp, err); err != nil {
		return nil, err
	}
	return cams, nil
}

func (s *CameraService) GetCamera(ctx context.Context, id string) (camera.Camera, error) {
	var cam camera.Camera

	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetResult(&cam).
		Get(apiPrefix + "/cameras/{id}")
	if err := checkResponse("get camera", resp, err); err != nil {
		return camera.Camera{}, err
	}
	return cam, nil
}

func (s *CameraService) CreateCamera(ctx context.Context, req camera.CreateRequest) (camera.Camera, error) {
	var cam camera.Camera

	resp, err := s.c.request(ctx).
		SetBody(req).
		SetResult(&cam).
		Post(apiPrefix + "/cameras")
	if err := checkResponse("create camera", resp, err); err != nil {
		return camera.Camera{}, err
	}
	return cam, nil
}

func (s *CameraService) UpdateCamera(ctx context.Context, id string, patch camera.Patch) (camera.Camera, error) {
	var cam camera.Camera

	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetBody(patch).
		SetResult(&cam).
		Put(apiPrefix + "/cameras/{id}")
	if err := checkResponse("update camera", resp, err); err != nil {
		return camera.Camera{}, err
	}
	return cam, nil
}

func (s *CameraService) DeleteCamera(ctx context.Context, id string) error {
	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		Delete(apiPrefix + "/cameras/{id}")
	return checkResponse("delete camera", resp, err)
}

func (s *CameraService) ConnectCamera(ctx context.Context, id string) error {
	return s.action(ctx, "connect camera", id, "connect")
}

func (s *CameraService) DisconnectCamera(ctx context.Context, id string) error {
	return s.action(ctx, "disconnect camera", id, "disconnect")
}

func (s *CameraService) action(ctx context.Context, op, id, verb string) error {
	var result ActionResult

	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetResult(&result).
		Post(apiPrefix + "/cameras/{id}/" + verb)
	if err := checkResponse(op, resp, err); err != nil {
		return err
	}

	// Older backends answer 200 with an empty body.
	if len(resp.Body()) > 0 && !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "backend reported failure"
		}
		return &DomainError{Op: op, StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}

func (s *CameraService) UpdateCredentials(ctx context.Context, id, username, password string) error {
	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetBody(CredentialsUpdate{Username: username, Password: password, AuthType: "basic"}).
		Put(apiPrefix + "/cameras/{id}/credentials")
	return checkResponse("update credentials", resp, err)
}

func (s *CameraService) AddCameraEndpoint(ctx context.Context, id string, ep camera.Endpoint) (camera.Camera, error) {
	var cam camera.Camera

	resp, err := s.c.request(ctx).
		SetPathParam("id", id).
		SetBody(ep).
		SetResult(&cam).
		Post(apiPrefix + "/cameras/{id}/endpoints")
	if err := checkResponse("add endpoint", resp, err); err != nil {
		return camera.Camera{}, err
	}
	return cam, nil
}

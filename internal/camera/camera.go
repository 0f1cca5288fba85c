package camera

import (
	"time"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDisconnected, StatusConnecting, StatusConnected, StatusError:
		return true
	}
	return false
}

type Protocol struct {
	Type      string `json:"protocol_type"`
	Port      int    `json:"port"`
	IsEnabled bool   `json:"is_enabled"`
	IsPrimary bool   `json:"is_primary"`
}

type Endpoint struct {
	Type           string     `json:"type"`
	URL            string     `json:"url"`
	IsVerified     bool       `json:"is_verified"`
	Priority       int        `json:"priority"`
	LastVerified   *time.Time `json:"last_verified,omitempty"`
	ResponseTimeMs *float64   `json:"response_time_ms,omitempty"`
}

// Credentials never carries the password; it is write-only on the backend.
type Credentials struct {
	Username string `json:"username"`
	AuthType string `json:"auth_type"`
}

type Statistics struct {
	TotalConnections      int        `json:"total_connections"`
	SuccessfulConnections int        `json:"successful_connections"`
	FailedConnections     int        `json:"failed_connections"`
	TotalFrames           int64      `json:"total_frames"`
	UptimeSeconds         float64    `json:"uptime_seconds"`
	AverageFPS            float64    `json:"average_fps"`
	AverageLatencyMs      float64    `json:"average_latency_ms"`
	LastError             string     `json:"last_error,omitempty"`
	LastErrorAt           *time.Time `json:"last_error_at,omitempty"`
}

type Capabilities struct {
	SupportsPTZ             bool     `json:"supports_ptz"`
	SupportsAudio           bool     `json:"supports_audio"`
	SupportsIR              bool     `json:"supports_ir"`
	SupportsMotionDetection bool     `json:"supports_motion_detection"`
	MaxResolution           string   `json:"max_resolution,omitempty"`
	SupportedCodecs         []string `json:"supported_codecs,omitempty"`
}

type Camera struct {
	ID           string       `json:"camera_id"`
	DisplayName  string       `json:"display_name"`
	Brand        string       `json:"brand"`
	Model        string       `json:"model"`
	IPAddress    string       `json:"ip_address"`
	Location     string       `json:"location,omitempty"`
	Description  string       `json:"description,omitempty"`
	Protocols    []Protocol   `json:"protocols"`
	Endpoints    []Endpoint   `json:"endpoints"`
	Credentials  *Credentials `json:"credentials,omitempty"`
	Status       Status       `json:"status"`
	IsConnected  bool         `json:"is_connected"`
	IsStreaming  bool         `json:"is_streaming"`
	IsActive     bool         `json:"is_active"`
	Statistics   Statistics   `json:"statistics"`
	Capabilities Capabilities `json:"capabilities"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// MarkDisconnected resets the runtime connection state.
func (c *Camera) MarkDisconnected() {
	c.Status = StatusDisconnected
	c.IsConnected = false
	c.IsStreaming = false
}

// MarkConnected sets the state reported after a successful remote connect.
func (c *Camera) MarkConnected() {
	c.Status = StatusConnected
	c.IsConnected = true
	c.IsStreaming = true
}

func (c *Camera) RecordError(msg string, at time.Time) {
	c.Statistics.LastError = msg
	c.Statistics.LastErrorAt = &at
}

func (c Camera) PrimaryProtocol() (Protocol, bool) {
	for _, p := range c.Protocols {
		if p.IsPrimary && p.IsEnabled {
			return p, true
		}
	}
	for _, p := range c.Protocols {
		if p.IsEnabled {
			return p, true
		}
	}
	return Protocol{}, false
}

// BestEndpoint returns the verified endpoint with the lowest priority value,
// falling back to any endpoint.
func (c Camera) BestEndpoint() (Endpoint, bool) {
	var (
		best  Endpoint
		found bool
	)
	for _, e := range c.Endpoints {
		if !found || (e.IsVerified && !best.IsVerified) ||
			(e.IsVerified == best.IsVerified && e.Priority < best.Priority) {
			best = e
			found = true
		}
	}
	return best, found
}

// Clone returns a deep copy so callers can't mutate stored state through
// shared slices or pointers.
func (c Camera) Clone() Camera {
	out := c
	if c.Protocols != nil {
		out.Protocols = append([]Protocol(nil), c.Protocols...)
	}
	if c.Endpoints != nil {
		out.Endpoints = make([]Endpoint, len(c.Endpoints))
		for i, e := range c.Endpoints {
			if e.LastVerified != nil {
				t := *e.LastVerified
				e.LastVerified = &t
			}
			if e.ResponseTimeMs != nil {
				r := *e.ResponseTimeMs
				e.ResponseTimeMs = &r
			}
			out.Endpoints[i] = e
		}
	}
	if c.Credentials != nil {
		cred := *c.Credentials
		out.Credentials = &cred
	}
	if c.Statistics.LastErrorAt != nil {
		t := *c.Statistics.LastErrorAt
		out.Statistics.LastErrorAt = &t
	}
	if c.Capabilities.SupportedCodecs != nil {
		out.Capabilities.SupportedCodecs = append([]string(nil), c.Capabilities.SupportedCodecs...)
	}
	return out
}

type CreateRequest struct {
	DisplayName  string        `json:"display_name"`
	Brand        string        `json:"brand"`
	Model        string        `json:"model"`
	IPAddress    string        `json:"ip_address"`
	Location     string        `json:"location,omitempty"`
	Description  string        `json:"description,omitempty"`
	Protocols    []Protocol    `json:"protocols,omitempty"`
	Username     string        `json:"username,omitempty"`
	Password     string        `json:"password,omitempty"`
	AuthType     string        `json:"auth_type,omitempty"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	DisplayName *string     `json:"display_name,omitempty"`
	Brand       *string     `json:"brand,omitempty"`
	Model       *string     `json:"model,omitempty"`
	IPAddress   *string     `json:"ip_address,omitempty"`
	Location    *string     `json:"location,omitempty"`
	Description *string     `json:"description,omitempty"`
	IsActive    *bool       `json:"is_active,omitempty"`
	Protocols   *[]Protocol `json:"protocols,omitempty"`
	Endpoints   *[]Endpoint `json:"endpoints,omitempty"`
	Status      *Status     `json:"status,omitempty"`
	IsConnected *bool       `json:"is_connected,omitempty"`
	IsStreaming *bool       `json:"is_streaming,omitempty"`
}

func (p Patch) Apply(c *Camera) {
	if p.DisplayName != nil {
		c.DisplayName = *p.DisplayName
	}
	if p.Brand != nil {
		c.Brand = *p.Brand
	}
	if p.Model != nil {
		c.Model = *p.Model
	}
	if p.IPAddress != nil {
		c.IPAddress = *p.IPAddress
	}
	if p.Location != nil {
		c.Location = *p.Location
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	if p.Protocols != nil {
		c.Protocols = append([]Protocol(nil), (*p.Protocols)...)
	}
	if p.Endpoints != nil {
		c.Endpoints = append([]Endpoint(nil), (*p.Endpoints)...)
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.IsConnected != nil {
		c.IsConnected = *p.IsConnected
	}
	if p.IsStreaming != nil {
		c.IsStreaming = *p.IsStreaming
	}
	if !c.IsConnected {
		c.IsStreaming = false
	}
}

package camera

// GridItem is the per-camera projection rendered by the dashboard grid.
// It is rebuilt whenever its camera changes and is never stored on its own.
type GridItem struct {
	Camera       Camera `json:"camera"`
	StreamingURL string `json:"streaming_url,omitempty"`
	LastFrame    string `json:"last_frame,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func NewGridItem(cam Camera, errMsg string) GridItem {
	item := GridItem{
		Camera:       cam.Clone(),
		ErrorMessage: errMsg,
	}
	if cam.IsStreaming {
		if ep, ok := cam.BestEndpoint(); ok {
			item.StreamingURL = ep.URL
		}
	}
	return item
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/backend"
	"github.com/yourorg/camera-dashboard/internal/camera"
	"github.com/yourorg/camera-dashboard/internal/store"
)

type handlers struct {
	deps Deps
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type locationRequest struct {
	Location string `json:"location"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var de *backend.DomainError
	if errors.As(err, &de) {
		resp.Fields = de.Fields
	}
	writeJSON(w, statusFor(err), resp)
}

func statusFor(err error) int {
	var he *backend.HTTPError
	switch {
	case errors.Is(err, store.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound), backend.IsNotFound(err):
		return http.StatusNotFound
	case backend.IsDomain(err):
		return http.StatusUnprocessableEntity
	case backend.IsNetwork(err), errors.As(err, &he):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// queryFrom builds a query from URL parameters. Without any it falls back to
// the store's current UI state.
func (h *handlers) queryFrom(r *http.Request) store.Query {
	params := r.URL.Query()
	keys := []string{"status", "brand", "location", "search", "sort", "order", "show_inactive"}

	given := false
	for _, k := range keys {
		if params.Has(k) {
			given = true
			break
		}
	}
	if !given {
		return h.deps.Store.Query()
	}

	q := store.DefaultQuery()
	if v := params.Get("status"); v != "" {
		q.Filters.Status = v
	}
	if v := params.Get("brand"); v != "" {
		q.Filters.Brand = v
	}
	if v := params.Get("location"); v != "" {
		q.Filters.Location = v
	}
	q.Search = params.Get("search")
	if v := store.SortField(params.Get("sort")); v.Valid() {
		q.SortBy = v
	}
	if params.Get("order") == string(store.Descending) {
		q.SortOrder = store.Descending
	}
	if v, err := strconv.ParseBool(params.Get("show_inactive")); err == nil {
		q.ShowInactive = v
	}
	return q
}

func (h *handlers) listCameras(w http.ResponseWriter, r *http.Request) {
	cams := store.Filter(h.deps.Store.Cameras(), h.queryFrom(r))
	writeJSON(w, http.StatusOK, cams)
}

func (h *handlers) getCamera(w http.ResponseWriter, r *http.Request) {
	cam, ok := h.deps.Store.GetCamera(mux.Vars(r)["id"])
	if !ok {
		writeError(w, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

func (h *handlers) createCamera(w http.ResponseWriter, r *http.Request) {
	var req camera.CreateRequest
	if !decode(w, r, &req) {
		return
	}
	cam, err := h.deps.Store.CreateCamera(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cam)
}

func (h *handlers) updateCamera(w http.ResponseWriter, r *http.Request) {
	var patch camera.Patch
	if !decode(w, r, &patch) {
		return
	}
	cam, err := h.deps.Store.SaveCamera(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

func (h *handlers) deleteCamera(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Store.DeleteCamera(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) connectCamera(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.deps.Store.ConnectCamera(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.writeCamera(w, id)
}

func (h *handlers) disconnectCamera(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.deps.Store.DisconnectCamera(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.writeCamera(w, id)
}

func (h *handlers) refreshCamera(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.deps.Store.RefreshCamera(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.writeCamera(w, id)
}

func (h *handlers) updateCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username is required"})
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.deps.Store.UpdateCredentials(r.Context(), id, req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	h.writeCamera(w, id)
}

func (h *handlers) addEndpoint(w http.ResponseWriter, r *http.Request) {
	var ep camera.Endpoint
	if !decode(w, r, &ep) {
		return
	}
	if ep.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.deps.Store.AddEndpoint(r.Context(), id, ep); err != nil {
		writeError(w, err)
		return
	}
	h.writeCamera(w, id)
}

func (h *handlers) writeCamera(w http.ResponseWriter, id string) {
	cam, ok := h.deps.Store.GetCamera(id)
	if !ok {
		writeError(w, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

func (h *handlers) connectAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Store.ConnectAllCameras(r.Context())
	h.writeBulk(w, res, err)
}

func (h *handlers) disconnectAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Store.DisconnectAllCameras(r.Context())
	h.writeBulk(w, res, err)
}

func (h *handlers) connectLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Location == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "location is required"})
		return
	}
	res, err := h.deps.Store.ConnectCamerasByLocation(r.Context(), req.Location)
	h.writeBulk(w, res, err)
}

// writeBulk reports per-camera failures in the body; only an interrupted run
// is an HTTP error.
func (h *handlers) writeBulk(w http.ResponseWriter, res store.BulkResult, err error) {
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) locations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Store.GetUniqueLocations())
}

func (h *handlers) brands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Store.GetUniqueBrands())
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Store.Stats())
}

func (h *handlers) getUIState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, store.UIState{
		Query:    h.deps.Store.Query(),
		Selected: h.deps.Store.Selected(),
	})
}

func (h *handlers) putUIState(w http.ResponseWriter, r *http.Request) {
	ui := store.UIState{Query: h.deps.Store.Query()}
	if !decode(w, r, &ui) {
		return
	}

	h.deps.Store.SetQuery(ui.Query)
	if ui.Selected != nil {
		h.deps.Store.ClearSelection()
		h.deps.Store.Select(ui.Selected...)
	}
	h.getUIState(w, r)
}

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Notifications.Recent())
}

func (h *handlers) dismissNotification(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Notifications.Dismiss(mux.Vars(r)["id"]) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "notification not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) connectionError(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Store.ConnectionError())
}

func (h *handlers) retryConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Store.RetryConnection(r.Context()); err != nil {
		writeJSON(w, statusFor(err), h.deps.Store.ConnectionError())
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Store.ConnectionError())
}

func (h *handlers) onboardingState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Onboarding.State())
}

func (h *handlers) completeOnboarding(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Onboarding.MarkCompleted(); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	h.onboardingState(w, r)
}

func (h *handlers) skipOnboarding(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Onboarding.MarkSkipped(); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	h.onboardingState(w, r)
}

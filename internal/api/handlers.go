// Package api exposes HTTP handlers for the realm backend.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dhiryansd999-cell/runrealm/internal/auth"
	"github.com/dhiryansd999-cell/runrealm/internal/domain"
	"github.com/dhiryansd999-cell/runrealm/internal/geo"
	"github.com/dhiryansd999-cell/runrealm/internal/persistence"
	"github.com/dhiryansd999-cell/runrealm/internal/profile"
	"github.com/dhiryansd999-cell/runrealm/internal/session"
	"github.com/dhiryansd999-cell/runrealm/internal/track"
)

// Handler coordinates HTTP requests with the session manager and repository.
type Handler struct {
	sessions *session.Manager
	profiles *profile.Synchronizer
	repo     domain.Repository
}

// NewHandler builds a Handler.
func NewHandler(sessions *session.Manager, profiles *profile.Synchronizer, repo domain.Repository) *Handler {
	return &Handler{sessions: sessions, profiles: profiles, repo: repo}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/session", h.sessionState)
	mux.HandleFunc("/v1/session/signin", h.signIn)
	mux.HandleFunc("/v1/session/signout", h.signOut)
	mux.HandleFunc("/v1/profiles", h.submitProfile)
	mux.HandleFunc("/v1/profiles/me", h.myProfile)
	mux.HandleFunc("/v1/runs/start", h.startRun)
	mux.HandleFunc("/v1/runs/points", h.appendPoints)
	mux.HandleFunc("/v1/runs/stop", h.stopRun)
	mux.HandleFunc("/v1/runs/current", h.currentRun)
	mux.HandleFunc("/v1/runs/stream", h.streamRun)
	mux.HandleFunc("/v1/territories", h.listTerritories)
	mux.HandleFunc("/v1/moments", h.listMoments)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) sessionState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeRunsRead, auth.ScopeRunsWrite)
	if !ok {
		return
	}

	machine, _ := h.sessions.Acquire(claims.Subject)
	writeJSON(w, http.StatusOK, machine.Snapshot())
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeRunsWrite)
	if !ok {
		return
	}

	machine, _ := h.sessions.Acquire(claims.Subject)
	if err := machine.SignIn(r.Context()); err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "invalid_state", "already signed in")
		case errors.Is(err, domain.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", "profile store unreachable, retry sign-in")
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, machine.Snapshot())
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeRunsWrite)
	if !ok {
		return
	}

	machine, _ := h.sessions.Acquire(claims.Subject)
	machine.SignOut()
	writeJSON(w, http.StatusOK, machine.Snapshot())
}

// SubmitProfileRequest is the payload for POST /v1/profiles.
type SubmitProfileRequest struct {
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle"`
	Bio         string `json:"bio"`
}

// Validate ensures request correctness.
func (r SubmitProfileRequest) Validate() error {
	if strings.TrimSpace(r.DisplayName) == "" {
		return errors.New("display_name is required")
	}
	if domain.NormalizeHandle(r.Handle) == "" {
		return errors.New("handle is required")
	}
	return nil
}

func (h *Handler) submitProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeProfilesWrite)
	if !ok {
		return
	}

	var req SubmitProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	machine, _ := h.sessions.Acquire(claims.Subject)
	if err := machine.SubmitProfile(r.Context(), req.DisplayName, req.Handle, req.Bio); err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "invalid_state", "profile submission not expected in current state")
		case errors.Is(err, domain.ErrHandleConflict):
			writeError(w, http.StatusConflict, "handle_conflict", "handle already taken, pick another")
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, machine.Snapshot())
}

// UpdateProfileRequest is the payload for PUT /v1/profiles/me. The handle and
// progression fields are not editable here.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
}

func (h *Handler) myProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		claims, ok := requireScope(w, r, auth.ScopeRunsRead, auth.ScopeRunsWrite)
		if !ok {
			return
		}
		prof, err := h.repo.GetProfile(r.Context(), claims.RealmID, claims.Subject)
		if err != nil {
			writeProfileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prof)

	case http.MethodPut:
		claims, ok := requireScope(w, r, auth.ScopeProfilesWrite)
		if !ok {
			return
		}
		var req UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		if strings.TrimSpace(req.DisplayName) == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "display_name is required")
			return
		}
		prof, err := h.profiles.Update(r.Context(), claims.Subject, req.DisplayName, req.Bio)
		if err != nil {
			writeProfileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prof)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func writeProfileError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "profile not found")
		return
	}
	writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
}

func (h *Handler) startRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeRunsWrite)
	if !ok {
		return
	}

	machine, _ := h.sessions.Acquire(claims.Subject)
	if err := machine.StartTracking(); err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, track.ErrAlreadyRecording):
			writeError(w, http.StatusConflict, "invalid_state", "tracking cannot start in current state")
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, machine.Snapshot())
}

// AppendPointsRequest is the payload for POST /v1/runs/points. SensorError
// reports a client-side geolocation failure in place of samples.
type AppendPointsRequest struct {
	Points      []geo.Point `json:"points"`
	SensorError string      `json:"sensor_error,omitempty"`
}

func (h *Handler) appendPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeRunsWrite)
	if !ok {
		return
	}

	var req AppendPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	machine, watcher := h.sessions.Acquire(claims.Subject)
	if req.SensorError != "" {
		watcher.Fail(geo.ErrPositionUnavailable)
		writeJSON(w, http.StatusOK, machine.Snapshot())
		return
	}
	if len(req.Points) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "points are required")
		return
	}
	for _, p := range req.Points {
		watcher.Push(p)
	}
	writeJSON(w, http.StatusOK, machine.Snapshot())
}

// CurrentRunResponse reports live stats for the active run.
type CurrentRunResponse struct {
	DistanceMeters float64    `json:"distance_meters"`
	UserLocation   *geo.Point `json:"user_location,omitempty"`
}

func (h *Handler) currentRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeRunsRead, auth.ScopeRunsWrite)
	if !ok {
		return
	}

	machine, _ := h.sessions.Acquire(claims.Subject)
	snap := machine.Snapshot()
	if !snap.Tracking {
		writeError(w, http.StatusConflict, "invalid_state", "no run in progress")
		return
	}
	writeJSON(w, http.StatusOK, CurrentRunResponse{
		DistanceMeters: snap.DistanceMeters,
		UserLocation:   snap.UserLocation,
	})
}

// StopRunResponse reports the claim created by a completed run.
type StopRunResponse struct {
	Territory     domain.Territory `json:"territory"`
	Moment        domain.Moment    `json:"moment"`
	Profile       domain.Profile   `json:"profile"`
	RewardApplied bool             `json:"reward_applied"`
}

func (h *Handler) stopRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeRunsWrite)
	if !ok {
		return
	}

	machine, _ := h.sessions.Acquire(claims.Subject)
	result, err := machine.StopTracking(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotTracking):
			writeError(w, http.StatusConflict, "invalid_state", "no run in progress")
		case errors.Is(err, track.ErrPathTooShort):
			writeError(w, http.StatusUnprocessableEntity, "path_too_short", "fewer than two points recorded")
		case errors.Is(err, track.ErrDegenerateTerritory):
			writeError(w, http.StatusUnprocessableEntity, "degenerate_territory", "run did not enclose claimable ground")
		case errors.Is(err, domain.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, StopRunResponse{
		Territory:     result.Territory,
		Moment:        result.Moment,
		Profile:       result.Profile,
		RewardApplied: result.RewardApplied,
	})
}

// ListTerritoriesResponse packages list results.
type ListTerritoriesResponse struct {
	Items      []domain.Territory `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

func (h *Handler) listTerritories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeRunsRead, auth.ScopeRunsWrite)
	if !ok {
		return
	}

	uid, limit, cursor, err := listParams(r, claims.Subject)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	items, next, err := h.repo.ListTerritories(r.Context(), claims.RealmID, uid, cursor, limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListTerritoriesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

// ListMomentsResponse packages list results.
type ListMomentsResponse struct {
	Items      []domain.Moment `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func (h *Handler) listMoments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeRunsRead, auth.ScopeRunsWrite)
	if !ok {
		return
	}

	uid, limit, cursor, err := listParams(r, claims.Subject)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	items, next, err := h.repo.ListMoments(r.Context(), claims.RealmID, uid, cursor, limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListMomentsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func listParams(r *http.Request, selfUID string) (uid string, limit int, cursor *domain.Cursor, err error) {
	uid = r.URL.Query().Get("user_id")
	if uid == "" {
		uid = selfUID
	}

	limit = 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, convErr := strconv.Atoi(raw); convErr == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err = persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		return "", 0, nil, errors.New("invalid cursor")
	}
	return uid, limit, cursor, nil
}

func requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+strings.Join(scopes, " or ")+" required")
	return nil, false
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

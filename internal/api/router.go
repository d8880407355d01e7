package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/recklessbear/rbsite/internal/middleware"
	"github.com/recklessbear/rbsite/internal/services"
	"github.com/recklessbear/rbsite/internal/tracking"
)

// Router wires the record-store endpoints consumed by the competition
// client, the order-tracking proxy and the admin surface.
type Router struct {
	competition *services.CompetitionService
	auth        *services.AuthService
	authmw      *middleware.Auth
	tracker     *tracking.Client
	log         *zap.Logger
}

type Options struct {
	Store   services.ParticipantStore // nil means in-memory (dev mode)
	Auth    *services.AuthService
	AuthMW  *middleware.Auth
	Tracker *tracking.Client
	Log     *zap.Logger
}

func NewRouter(opts Options) *Router {
	store := opts.Store
	if store == nil {
		store = newMemoryStore()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		competition: services.NewCompetitionService(store),
		auth:        opts.Auth,
		authmw:      opts.AuthMW,
		tracker:     opts.Tracker,
		log:         log,
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/check-user", rt.handleCheckUser)
	mux.HandleFunc("POST /api/register-user", rt.handleRegisterUser)
	mux.HandleFunc("POST /api/update-progress", rt.handleUpdateProgress)
	mux.HandleFunc("GET /api/track-order", rt.handleTrackOrder)
	if rt.auth != nil && rt.authmw != nil {
		mux.HandleFunc("POST /api/auth/login", rt.handleLogin)
		admin := http.NewServeMux()
		admin.HandleFunc("GET /api/admin/participants", rt.handleListParticipants)
		admin.HandleFunc("GET /api/admin/participants/export", rt.handleExportParticipants)
		mux.Handle("/api/admin/", rt.authmw.WithAuth(middleware.RequireAuth(admin)))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the service error taxonomy onto HTTP statuses. An
// unknown error is a 500 with a generic message; details stay in logs.
func (rt *Router) writeError(w http.ResponseWriter, err error) {
	if se, ok := services.AsServiceError(err); ok {
		status := http.StatusInternalServerError
		switch se.Code {
		case services.ErrorInvalid:
			status = http.StatusBadRequest
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorConflict, services.ErrorAlreadyComplete:
			status = http.StatusConflict
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case services.ErrorBadGateway:
			status = http.StatusBadGateway
		}
		writeJSON(w, status, map[string]any{"message": se.Message, "code": se.Code})
		return
	}
	rt.log.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "internal error"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid request body"})
		return false
	}
	return true
}

// POST /api/check-user {email} -> {exists, recordId?, status?, logosFound?}
func (rt *Router) handleCheckUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := rt.competition.CheckUser(r.Context(), req.Email)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/register-user {fullName, email, phone, deviceId} -> {success, recordId}
func (rt *Router) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req services.Registration
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := rt.competition.RegisterUser(r.Context(), req)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "recordId": p.RecordID})
}

// POST /api/update-progress {recordId, logosFound} -> {success, logosFound, status}
// The server performs its own conditioned increment; the client's
// logosFound is logged for correlation but never trusted.
func (rt *Router) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecordID   string `json:"recordId"`
		LogosFound int    `json:"logosFound"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := rt.competition.UpdateProgress(r.Context(), req.RecordID)
	if err != nil {
		if services.IsCode(err, services.ErrorAlreadyComplete) {
			writeJSON(w, http.StatusConflict, res)
			return
		}
		rt.writeError(w, err)
		return
	}
	if res.LogosFound != req.LogosFound {
		rt.log.Info("progress reconciled",
			zap.String("record_id", req.RecordID),
			zap.Int("client_count", req.LogosFound),
			zap.Int("authoritative_count", res.LogosFound))
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/track-order?lead_id=...
func (rt *Router) handleTrackOrder(w http.ResponseWriter, r *http.Request) {
	if rt.tracker == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "order tracking not configured"})
		return
	}
	leadID := r.URL.Query().Get("lead_id")
	if leadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "lead_id required"})
		return
	}
	status, err := rt.tracker.Lookup(r.Context(), leadID)
	if err != nil {
		if errors.Is(err, tracking.ErrLookupFailed) {
			rt.writeError(w, services.NewBadGatewayError("unable to fetch order status"))
			return
		}
		rt.writeError(w, err)
		return
	}
	stage, idx := tracking.MapStatus(status)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"stage":      stage,
		"stageIndex": idx,
	})
}

// POST /api/auth/login {email, password} -> {token}
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := rt.auth.Login(req.Email, req.Password)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/admin/participants
func (rt *Router) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	rows, err := rt.competition.ListParticipants(r.Context())
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": rows, "count": len(rows)})
}

// GET /api/admin/participants/export
func (rt *Router) handleExportParticipants(w http.ResponseWriter, r *http.Request) {
	rows, err := rt.competition.ListParticipants(r.Context())
	if err != nil {
		rt.writeError(w, err)
		return
	}
	b, err := services.ExportParticipantsCSV(rows)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=participants.csv")
	_, _ = w.Write(b)
}

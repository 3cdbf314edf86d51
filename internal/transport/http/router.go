package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

// Container holds the router's dependencies.
type Container struct {
	Service *app.AssessmentService
	WS      *WSHandler
	Auth    *Authenticator
	Log     *slog.Logger
}

// NewRouter builds the HTTP API: websocket sessions, learner REST endpoints
// and the JWT-protected admin surface.
func NewRouter(c *Container) http.Handler {
	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	h := &restHandler{service: c.Service, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	if c.WS != nil {
		r.HandleFunc("/ws", c.WS.ServeWS).Methods("GET")
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/lessons/{lessonId}/gate", h.gate).Methods("GET")
	v1.HandleFunc("/lessons/{lessonId}/requests", h.createRequest).Methods("POST")
	v1.HandleFunc("/attempts/{id}/comment", h.attachComment).Methods("PUT")

	admin := v1.PathPrefix("/admin").Subrouter()
	admin.Use(c.Auth.RequireAdmin)
	admin.HandleFunc("/configs", h.listConfigs).Methods("GET")
	admin.HandleFunc("/configs/active", h.activeConfig).Methods("GET")
	admin.HandleFunc("/configs/{name}", h.saveConfig).Methods("PUT")
	admin.HandleFunc("/configs/{name}/activate", h.activateConfig).Methods("POST")
	admin.HandleFunc("/requests", h.listRequests).Methods("GET")
	admin.HandleFunc("/requests/{id}/resolve", h.resolveRequest).Methods("POST")
	admin.HandleFunc("/overrides", h.setOverride).Methods("PUT")
	admin.HandleFunc("/attempts", h.listAttempts).Methods("GET")

	return r
}

type restHandler struct {
	service *app.AssessmentService
	log     *slog.Logger
}

// gate handles GET /v1/lessons/{lessonId}/gate?userId=
func (h *restHandler) gate(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId")
		return
	}
	gate, err := h.service.Gate(r.Context(), userID, mux.Vars(r)["lessonId"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gate)
}

type createRequestBody struct {
	UserID string `json:"userId"`
}

// createRequest handles POST /v1/lessons/{lessonId}/requests
func (h *restHandler) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req, err := h.service.RequestAttempts(r.Context(), body.UserID, mux.Vars(r)["lessonId"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

type commentBody struct {
	UserID  string `json:"userId"`
	Comment string `json:"comment"`
}

// attachComment handles PUT /v1/attempts/{id}/comment
func (h *restHandler) attachComment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attempt id")
		return
	}
	var body commentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing userId")
		return
	}
	rec, err := h.service.AttachComment(r.Context(), body.UserID, id, body.Comment)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *restHandler) listConfigs(w http.ResponseWriter, r *http.Request) {
	cfgs, err := h.service.ListEventConfigs(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfgs)
}

func (h *restHandler) activeConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.ActiveEventConfig(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// saveConfig handles PUT /v1/admin/configs/{name}; the path wins over the body's name.
func (h *restHandler) saveConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.EventConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg.Name = mux.Vars(r)["name"]
	if err := app.ValidateEventConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.SaveEventConfig(r.Context(), cfg); err != nil {
		h.fail(w, err)
		return
	}
	h.log.Info("admin saved event config", "admin", AdminSubject(r.Context()), "config", cfg.Name)
	writeJSON(w, http.StatusOK, cfg)
}

func (h *restHandler) activateConfig(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.service.ActivateEventConfig(r.Context(), name); err != nil {
		h.fail(w, err)
		return
	}
	h.log.Info("admin activated event config", "admin", AdminSubject(r.Context()), "config", name)
	writeJSON(w, http.StatusOK, map[string]string{"active": name})
}

// listRequests handles GET /v1/admin/requests?status=pending
func (h *restHandler) listRequests(w http.ResponseWriter, r *http.Request) {
	status := domain.RequestStatus(r.URL.Query().Get("status"))
	reqs, err := h.service.ListRequests(r.Context(), status)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

type resolveBody struct {
	Decision domain.RequestStatus `json:"decision"`
	Allowed  *int                 `json:"allowed,omitempty"`
}

func (h *restHandler) resolveRequest(w http.ResponseWriter, r *http.Request) {
	var body resolveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req, err := h.service.ResolveRequest(r.Context(), mux.Vars(r)["id"], body.Decision, body.Allowed)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.log.Info("admin resolved attempt request", "admin", AdminSubject(r.Context()), "request", req.ID, "decision", req.Status)
	writeJSON(w, http.StatusOK, req)
}

func (h *restHandler) setOverride(w http.ResponseWriter, r *http.Request) {
	var override domain.AttemptOverride
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil || override.UserID == "" || override.LessonID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.SetOverride(r.Context(), override); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, override)
}

// listAttempts handles GET /v1/admin/attempts?userId=&lessonId=
func (h *restHandler) listAttempts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recs, err := h.service.ListAttempts(r.Context(), domain.AttemptFilter{UserID: q.Get("userId"), LessonID: q.Get("lessonId")})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *restHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/crashctx/internal/config"
	"github.com/gyaneshwarpardhi/crashctx/internal/event"
	"github.com/gyaneshwarpardhi/crashctx/internal/sdk"
	"github.com/gyaneshwarpardhi/crashctx/internal/snapshot"
)

const maxBodyBytes = 64 << 10

// Handler holds all HTTP handler dependencies.
type Handler struct {
	client *sdk.Client
	loader *config.Loader // nil disables /v1/options/reload
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(client *sdk.Client, loader *config.Loader) http.Handler {
	h := &Handler{client: client, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /v1/context", h.getContext)
	h.mux.HandleFunc("GET /v1/context/persisted", h.getPersisted)
	h.mux.HandleFunc("PUT /v1/context/release", h.setRelease)
	h.mux.HandleFunc("DELETE /v1/context/release", h.removeRelease)
	h.mux.HandleFunc("PUT /v1/context/level", h.setLevel)
	h.mux.HandleFunc("PUT /v1/context/transaction", h.setTransaction)
	h.mux.HandleFunc("DELETE /v1/context/transaction", h.removeTransaction)
	h.mux.HandleFunc("PUT /v1/context/user", h.setUser)
	h.mux.HandleFunc("DELETE /v1/context/user", h.removeUser)
	h.mux.HandleFunc("PUT /v1/context/tags/{key}", h.setTag)
	h.mux.HandleFunc("DELETE /v1/context/tags/{key}", h.removeTag)
	h.mux.HandleFunc("PUT /v1/context/extra/{key}", h.setExtra)
	h.mux.HandleFunc("DELETE /v1/context/extra/{key}", h.removeExtra)
	h.mux.HandleFunc("PUT /v1/context/fingerprint", h.setFingerprint)
	h.mux.HandleFunc("DELETE /v1/context/fingerprint", h.removeFingerprint)
	h.mux.HandleFunc("POST /v1/breadcrumbs", h.addBreadcrumb)
	h.mux.HandleFunc("GET /v1/breadcrumbs", h.listBreadcrumbs)
	h.mux.HandleFunc("POST /v1/options/reload", h.reloadOptions)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

type valueRequest struct {
	Value *string `json:"value"`
}

type fingerprintRequest struct {
	Parts []string `json:"parts"`
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return false
	}
	return true
}

// decodeValue reads {"value": "..."}; the value is required.
func decodeValue(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req valueRequest
	if !decode(w, r, &req) {
		return "", false
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return "", false
	}
	return *req.Value, true
}

// GET /v1/context — in-memory context.
func (h *Handler) getContext(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.client.Store().Snapshot())
}

// GET /v1/context/persisted — context as the crash handler would read it.
func (h *Handler) getPersisted(w http.ResponseWriter, r *http.Request) {
	if !h.client.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "sdk disabled: nothing is persisted")
		return
	}
	c, err := snapshot.Read(h.client.EventPath())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) setRelease(w http.ResponseWriter, r *http.Request) {
	if v, ok := decodeValue(w, r); ok {
		h.client.Store().SetRelease(v)
		h.ok(w)
	}
}

func (h *Handler) removeRelease(w http.ResponseWriter, r *http.Request) {
	h.client.Store().RemoveRelease()
	h.ok(w)
}

func (h *Handler) setLevel(w http.ResponseWriter, r *http.Request) {
	v, ok := decodeValue(w, r)
	if !ok {
		return
	}
	lvl, err := event.ParseLevel(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.client.Store().SetLevel(lvl)
	h.ok(w)
}

func (h *Handler) setTransaction(w http.ResponseWriter, r *http.Request) {
	if v, ok := decodeValue(w, r); ok {
		h.client.Store().SetTransaction(v)
		h.ok(w)
	}
}

func (h *Handler) removeTransaction(w http.ResponseWriter, r *http.Request) {
	h.client.Store().RemoveTransaction()
	h.ok(w)
}

func (h *Handler) setUser(w http.ResponseWriter, r *http.Request) {
	var u event.User
	if !decode(w, r, &u) {
		return
	}
	h.client.Store().SetUser(u)
	h.ok(w)
}

func (h *Handler) removeUser(w http.ResponseWriter, r *http.Request) {
	h.client.Store().RemoveUser()
	h.ok(w)
}

func (h *Handler) setTag(w http.ResponseWriter, r *http.Request) {
	if v, ok := decodeValue(w, r); ok {
		h.client.Store().SetTag(r.PathValue("key"), v)
		h.ok(w)
	}
}

func (h *Handler) removeTag(w http.ResponseWriter, r *http.Request) {
	h.client.Store().RemoveTag(r.PathValue("key"))
	h.ok(w)
}

func (h *Handler) setExtra(w http.ResponseWriter, r *http.Request) {
	if v, ok := decodeValue(w, r); ok {
		h.client.Store().SetExtra(r.PathValue("key"), v)
		h.ok(w)
	}
}

func (h *Handler) removeExtra(w http.ResponseWriter, r *http.Request) {
	h.client.Store().RemoveExtra(r.PathValue("key"))
	h.ok(w)
}

func (h *Handler) setFingerprint(w http.ResponseWriter, r *http.Request) {
	var req fingerprintRequest
	if !decode(w, r, &req) {
		return
	}
	h.client.Store().SetFingerprint(req.Parts)
	h.ok(w)
}

func (h *Handler) removeFingerprint(w http.ResponseWriter, r *http.Request) {
	h.client.Store().RemoveFingerprint()
	h.ok(w)
}

// POST /v1/breadcrumbs — {"message": "...", "level": "..."}, both optional.
func (h *Handler) addBreadcrumb(w http.ResponseWriter, r *http.Request) {
	var b event.Breadcrumb
	if !decode(w, r, &b) {
		return
	}
	h.client.AddBreadcrumb(b)
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// GET /v1/breadcrumbs — retained breadcrumbs, oldest first.
func (h *Handler) listBreadcrumbs(w http.ResponseWriter, r *http.Request) {
	crumbs, err := h.client.Breadcrumbs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if crumbs == nil {
		crumbs = []event.Breadcrumb{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(crumbs),
		"breadcrumbs": crumbs,
	})
}

// POST /v1/options/reload — re-read options and apply release/environment/dist.
func (h *Handler) reloadOptions(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusNotFound, "no options loader configured")
		return
	}
	opts, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.client.ApplyOptions(opts)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":    true,
		"release":     opts.Release,
		"environment": opts.Environment,
		"dist":        opts.Dist,
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 while the SDK runs disabled.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if !h.client.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "disabled",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ready",
		"run_id":       h.client.Run().ID,
		"event_path":   h.client.EventPath(),
		"minidump_url": h.client.MinidumpURL(),
	})
}

func (h *Handler) ok(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, h.client.Store().Snapshot())
}

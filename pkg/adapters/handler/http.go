package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

type HTTPHandler struct {
	service  ports.RedirectService
	resolver ports.Resolver
}

func NewHTTPHandler(service ports.RedirectService, resolver ports.Resolver) *HTTPHandler {
	return &HTTPHandler{service: service, resolver: resolver}
}

// CreateResponse is returned by a successful create.
type CreateResponse struct {
	Key      string           `json:"key"`
	Redirect *domain.Redirect `json:"redirect"`
}

// Resolve answers GET /{group}/{slug} with a 302 to the stored target.
func (h *HTTPHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	target, err := h.resolver.Resolve(r.Context(), chi.URLParam(r, "group"), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	var in domain.CreateInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.service.Create(r.Context(), in, principal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateResponse{Key: rec.Key(), Redirect: rec})
}

func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "group"), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paging(r)
	res, err := h.service.List(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paging(r)
	res, err := h.service.ListByUser(r.Context(), chi.URLParam(r, "user"), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.Patch
	if err := readJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.Update(r.Context(), chi.URLParam(r, "group"), chi.URLParam(r, "slug"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	group, slug := chi.URLParam(r, "group"), chi.URLParam(r, "slug")
	if err := h.service.Delete(r.Context(), group, slug); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": domain.CompositeKey(group, slug)})
}

// paging reads page and page_size. Missing or malformed values become 0
// and are normalised by the service.
func paging(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	return page, pageSize
}

func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid body: %v", domain.ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Log.Error("request failed", zap.Error(err))
		if errors.Is(err, domain.ErrCorrupted) {
			msg = domain.ErrCorrupted.Error()
		} else {
			msg = domain.ErrInternal.Error()
		}
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

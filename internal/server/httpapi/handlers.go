package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/server/advisor"
	"github.com/dmitrijs2005/profilekeeper/internal/server/records"
	"github.com/gorilla/mux"
)

// maxBodyBytes caps request bodies; a questionnaire is a few kilobytes.
const maxBodyBytes = 1 << 20

// ProfileService is satisfied by *profiles.Service.
type ProfileService interface {
	Create(ctx context.Context, fields records.Patch) (records.Record, error)
	Login(ctx context.Context, email, password string) (records.Record, error)
	Update(ctx context.Context, patch records.Patch) (records.Record, error)
	Classify(ctx context.Context, username string) (records.Record, error)
	Recommendations(ctx context.Context, username string) (advisor.Dashboard, error)
}

// ReadinessChecker is satisfied by *records.Store.
type ReadinessChecker interface {
	Check(ctx context.Context) (int, error)
}

type Handlers struct {
	svc    ProfileService
	store  ReadinessChecker
	logger logging.Logger
}

func NewHandlers(svc ProfileService, store ReadinessChecker, logger logging.Logger) *Handlers {
	return &Handlers{svc: svc, store: store, logger: logger.With("module", "http_handlers")}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message    string `json:"message"`
	Username   string `json:"username"`
	RiskBucket string `json:"riskBucket,omitempty"`

	// LegacyRiskBucket mirrors RiskBucket for the web front end, which
	// reads the snake_case key.
	LegacyRiskBucket string `json:"risk_bucket,omitempty"`
}

type classifyResponse struct {
	Message    string `json:"message"`
	RiskBucket string `json:"riskBucket"`
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	fields, err := records.DecodePatch(body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if _, err := h.svc.Create(r.Context(), fields); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, common.MsgFormSaved)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var req loginRequest
	if err := decodeStrict(body, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	rec, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:          common.MsgLoginSuccessful,
		Username:         rec.Username,
		RiskBucket:       rec.RiskBucket,
		LegacyRiskBucket: rec.RiskBucket,
	})
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	patch, err := records.DecodePatch(body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if _, err := h.svc.Update(r.Context(), patch); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, common.MsgUserUpdated)
}

func (h *Handlers) Classify(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Classify(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{Message: common.MsgRiskBucketUpdated, RiskBucket: rec.RiskBucket})
}

func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Recommendations(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports whether the record store can currently be loaded.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Check(r.Context())
	if err != nil {
		h.logger.Warn(r.Context(), "readiness check failed", "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": n})
}

// readBody reads the whole body and answers 400 itself when it is empty or
// too large.
func (h *Handlers) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		writeError(w, r, h.logger, fmt.Errorf("%w: read body: %v", common.ErrBadRequest, err))
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeMessage(w, http.StatusBadRequest, common.MsgEmptyBody)
		return nil, false
	}
	return body, true
}

// decodeStrict decodes a single JSON object into v.
func decodeStrict(body []byte, v any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return fmt.Errorf("%w: body must be a JSON object", common.ErrBadRequest)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", common.ErrBadRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON object", common.ErrBadRequest)
	}
	return nil
}

package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/hookah/internal/auth"
	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/hookah"
	"github.com/hpungsan/hookah/internal/ops"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Handlers contains HTTP route handlers for the API.
type Handlers struct {
	svc Service
	log logrus.FieldLogger
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HandleSuggest handles POST /api/hookah-picker/suggestions.
func (h *Handlers) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ParseBearer(r.Header.Get("Authorization"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	// A decode failure is reported by the service once the token is verified and admitted.
	input := ops.SuggestInput{Token: token}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&input.Preferences); err != nil {
		input.Preferences = hookah.Preferences{}
		input.BodyErr = err
	}

	out, err := h.svc.Suggest(r.Context(), input)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleHistory handles GET /api/hookah-picker/history.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ParseBearer(r.Header.Get("Authorization"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	out, err := h.svc.History(r.Context(), ops.HistoryInput{Token: token})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// renderError writes err as {"error", "code"}. Internal causes are logged, never sent.
func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	hErr := errors.As(err)

	message := hErr.Message
	if !hErr.Exposed() {
		message = "Internal server error"
	}

	if hErr.Status >= 500 {
		h.log.WithError(err).WithFields(logrus.Fields{
			"request_id": RequestID(r.Context()),
			"code":       hErr.Code,
		}).Error("request failed")
	}

	if hErr.Code == errors.ErrRateLimited {
		if secs, ok := hErr.Details["retry_after_seconds"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	}

	renderJSON(w, hErr.Status, errorBody{Error: message, Code: string(hErr.Code)})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hookah/internal/auth"
	"github.com/hpungsan/hookah/internal/cache"
	"github.com/hpungsan/hookah/internal/db"
	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/generate"
	"github.com/hpungsan/hookah/internal/history"
	"github.com/hpungsan/hookah/internal/hookah"
	"github.com/hpungsan/hookah/internal/logging"
	"github.com/hpungsan/hookah/internal/ops"
	"github.com/hpungsan/hookah/internal/ratelimit"
)

// stubService returns canned results and records its inputs.
type stubService struct {
	suggestErr error
	historyErr error
	gotSuggest ops.SuggestInput
	gotHistory ops.HistoryInput
	panicOn    bool
}

func (s *stubService) Suggest(_ context.Context, in ops.SuggestInput) (*ops.SuggestOutput, error) {
	if s.panicOn {
		panic("boom")
	}
	s.gotSuggest = in
	if in.BodyErr != nil {
		return nil, errors.NewInvalidRequest("Invalid request body")
	}
	if s.suggestErr != nil {
		return nil, s.suggestErr
	}
	return &ops.SuggestOutput{
		Suggestions: []hookah.Suggestion{{Name: "Citrus Chill", Ingredients: []string{"lemon", "mint"}, Reasoning: "Bright."}},
		Analysis:    "Fresh.",
		UserName:    "Alex",
	}, nil
}

func (s *stubService) History(_ context.Context, in ops.HistoryInput) (*ops.HistoryOutput, error) {
	s.gotHistory = in
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return &ops.HistoryOutput{History: []hookah.HistoryItem{}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleSuggest_OK(t *testing.T) {
	svc := &stubService{}
	h := NewHandler(svc, logging.Discard())

	rec := do(t, h, http.MethodPost, SuggestionsPath, `{"name":"Alex","tastes":["citrus"],"extra":true}`, "tok")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "tok", svc.gotSuggest.Token)
	assert.Equal(t, []string{"citrus"}, svc.gotSuggest.Preferences.Tastes)
	assert.Equal(t, "Alex", svc.gotSuggest.Preferences.Name)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Alex", out["userName"])
	assert.Equal(t, "Fresh.", out["analysis"])
	assert.Len(t, out["suggestions"], 1)
	assert.NotContains(t, out, "Hash")
}

func TestHandleSuggest_MissingToken(t *testing.T) {
	svc := &stubService{}
	h := NewHandler(svc, logging.Discard())

	rec := do(t, h, http.MethodPost, SuggestionsPath, `{"tastes":["citrus"]}`, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
	assert.Empty(t, svc.gotSuggest.Token, "service must not be called")
}

func TestHandleSuggest_MalformedBody(t *testing.T) {
	svc := &stubService{}
	h := NewHandler(svc, logging.Discard())

	rec := do(t, h, http.MethodPost, SuggestionsPath, `{"tastes":`, "tok")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Error(t, svc.gotSuggest.BodyErr, "decode failure is handed to the service")
	assert.Equal(t, "tok", svc.gotSuggest.Token)
	body := decodeError(t, rec)
	assert.Equal(t, "INVALID_REQUEST", body.Code)
	assert.Equal(t, "Invalid request body", body.Error)
}

func TestHandleSuggest_BodyTooLarge(t *testing.T) {
	h := NewHandler(&stubService{}, logging.Discard())

	big := `{"occasion":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := do(t, h, http.MethodPost, SuggestionsPath, big, "tok")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSuggest_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"rate limited", errors.NewRateLimited(60), 429, "RATE_LIMITED", "Rate limit exceeded. Please try again in a minute."},
		{"validation", errors.NewInvalidRequest("Please select at least one preference"), 400, "INVALID_REQUEST", "Please select at least one preference"},
		{"generation", errors.NewGenerationFailed(5, errors.NewParseFailed("invalid JSON")), 500, "GENERATION_FAILED", "Failed to generate suggestions after multiple attempts"},
		{"store failure hides detail", errors.NewStoreFailure("insert suggestion", context.DeadlineExceeded), 500, "STORE_FAILURE", "Internal server error"},
		{"plain error", context.Canceled, 500, "INTERNAL", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&stubService{suggestErr: tt.err}, logging.Discard())

			rec := do(t, h, http.MethodPost, SuggestionsPath, `{"tastes":["citrus"]}`, "tok")

			require.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMessage, body.Error)
		})
	}
}

func TestHandleSuggest_RetryAfterHeader(t *testing.T) {
	h := NewHandler(&stubService{suggestErr: errors.NewRateLimited(60)}, logging.Discard())

	rec := do(t, h, http.MethodPost, SuggestionsPath, `{"tastes":["citrus"]}`, "tok")

	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestHandleHistory(t *testing.T) {
	svc := &stubService{}
	h := NewHandler(svc, logging.Discard())

	rec := do(t, h, http.MethodGet, HistoryPath, "", "tok")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", svc.gotHistory.Token)
	assert.JSONEq(t, `{"history":[]}`, rec.Body.String())
}

func TestHandleHistory_Unauthorized(t *testing.T) {
	h := NewHandler(&stubService{historyErr: errors.NewUnauthorized("Invalid token", nil)}, logging.Discard())

	rec := do(t, h, http.MethodGet, HistoryPath, "", "bad")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decodeError(t, rec).Error)
}

func TestRouting(t *testing.T) {
	h := NewHandler(&stubService{}, logging.Discard())

	rec := do(t, h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, SuggestionsPath, "", "tok")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, h, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hookah_http_requests_total")
}

// fixedService always answers with the same generator text.
type fixedService struct{ text string }

func (f fixedService) Generate(context.Context, string) (string, error) { return f.text, nil }

// newLiveHandler wires the real service over SQLite with a canned generator.
func newLiveHandler(t *testing.T, limit int) (http.Handler, *auth.JWTVerifier) {
	t.Helper()
	sqlDB, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store := db.NewStore(sqlDB)
	log := logging.Discard()
	signer := auth.NewJWTVerifier("secret")
	gen := generate.New(fixedService{text: "```json\n" + `{
		"suggestions": [
			{"name": "A", "ingredients": ["lemon", "mint"], "reasoning": "r"},
			{"name": "B", "ingredients": ["orange", "mint"], "reasoning": "r"},
			{"name": "C", "ingredients": ["lime", "basil"], "reasoning": "r"}
		],
		"analysis": "citrus lover"
	}` + "\n```"}, generate.Options{MaxAttempts: 1, Timeout: time.Second}, log)

	svc := ops.New(ops.Deps{
		Verifier:  signer,
		Limiter:   ratelimit.NewFixedWindow(limit, time.Minute),
		Cache:     cache.New(store, log),
		Generator: gen,
		History:   history.New(store, log),
		Log:       log,
	})
	return NewHandler(svc, log), signer
}

func TestAPI_EndToEnd(t *testing.T) {
	h, signer := newLiveHandler(t, 10)

	tok, err := signer.Sign("u1", time.Hour)
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, SuggestionsPath, `{"name":"Alex","tastes":["citrus"," citrus "],"moods":["chill"]}`, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		Suggestions []hookah.Suggestion `json:"suggestions"`
		Analysis    string              `json:"analysis"`
		UserName    string              `json:"userName"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Suggestions, 3)
	assert.Equal(t, "citrus lover", got.Analysis)
	assert.Equal(t, "Alex", got.UserName)

	rec = do(t, h, http.MethodGet, HistoryPath, "", tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var hist struct {
		History []hookah.HistoryItem `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.History, 1)
	assert.Equal(t, []string{"citrus"}, hist.History[0].Preferences.Tastes)
}

func TestAPI_ForgedTokenWithMalformedBody(t *testing.T) {
	h, _ := newLiveHandler(t, 10)

	rec := do(t, h, http.MethodPost, SuggestionsPath, `{not json`, "forged.token.value")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
}

func TestAPI_MalformedBodyConsumesQuota(t *testing.T) {
	h, signer := newLiveHandler(t, 1)
	tok, err := signer.Sign("u1", time.Hour)
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, SuggestionsPath, `{not json`, tok)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decodeError(t, rec).Error)

	rec = do(t, h, http.MethodPost, SuggestionsPath, `{"tastes":["citrus"]}`, tok)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cifra/internal/core"
	"cifra/internal/log"
	"cifra/internal/session"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "v").
		Body(map[string]string{"status": "ok"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("X-Custom"); got != "v" {
		t.Errorf("X-Custom = %q", got)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("Body = %q", got)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantBody   string
	}{
		{core.ErrKeyUnavailable, http.StatusServiceUnavailable, `{"status":"not_ready"}`},
		{fmt.Errorf("wrap: %w", core.ErrRawInputMissing), http.StatusUnprocessableEntity, `{"status":"unavailable"}`},
		{core.ErrInvalidKeyMaterial, http.StatusBadRequest, `{"status":"error","error":"invalid_key_material"}`},
		{session.ErrMalformedInput, http.StatusBadRequest, `{"status":"error","error":"malformed_input"}`},
		{session.ErrUnknownKind, http.StatusBadRequest, `{"status":"error","error":"unknown_kind"}`},
		{session.ErrSuperseded, http.StatusConflict, `{"status":"superseded"}`},
		{ErrBodyTooLarge, http.StatusRequestEntityTooLarge, `{"status":"error","error":"body_too_large"}`},
		{context.Canceled, http.StatusRequestTimeout, `{"status":"canceled"}`},
		{errors.New("secret detail"), http.StatusInternalServerError, `{"status":"error","error":"unknown"}`},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			errorResponse(context.Background(), log.Discard(), tt.err).Write(w)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
		})
	}
}

package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"cifra/internal/core"
	"cifra/internal/session"
)

func TestParseSlot(t *testing.T) {
	now := time.Date(2025, time.September, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   url.Values
		want    session.Slot
		wantErr bool
	}{
		{
			name:  "all values provided",
			query: url.Values{"year": {"2024"}, "month": {"11"}, "currency": {"pen"}},
			want:  session.Slot{Year: 2024, Month: 11, Currency: "PEN"},
		},
		{
			name:  "empty query uses now",
			query: url.Values{},
			want:  session.Slot{Year: 2025, Month: 8},
		},
		{
			name:  "month zero is january",
			query: url.Values{"month": {"0"}},
			want:  session.Slot{Year: 2025, Month: 0},
		},
		{name: "month out of range", query: url.Values{"month": {"12"}}, wantErr: true},
		{name: "month not a number", query: url.Values{"month": {"abc"}}, wantErr: true},
		{name: "year not a number", query: url.Values{"year": {"x"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSlot(tt.query, now)
			if tt.wantErr {
				if !errors.Is(err, ErrBadRequest) {
					t.Fatalf("err = %v, want ErrBadRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("slot = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseKeyBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{name: "plain", body: " abcd\n", want: "abcd"},
		{name: "json", body: `{"key": "abcd"}`, want: "abcd"},
		{name: "empty", body: "  ", wantErr: core.ErrInvalidKeyMaterial},
		{name: "empty json key", body: `{"key": ""}`, wantErr: core.ErrInvalidKeyMaterial},
		{name: "broken json", body: `{"key": `, wantErr: ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeyBody([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadBody_Limit(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 20)))
	if _, err := readBody(w, r, 10); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("short"))
	body, err := readBody(w, r, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "short" {
		t.Errorf("body = %q", body)
	}
}

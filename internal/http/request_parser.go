// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of agent API requests: the
// period a decrypt request is about and the size-bounded request bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cifra/internal/core"
	"cifra/internal/session"
)

// ErrBadRequest marks invalid query parameters or bodies.
var ErrBadRequest = errors.New("bad request")

// ErrBodyTooLarge is returned when a body exceeds its limit.
var ErrBodyTooLarge = errors.New("request body too large")

// ParseSlot reads year, month and currency from query parameters. Month is
// 0-based like every month index of the API; missing values default to
// now.
func ParseSlot(query url.Values, now time.Time) (session.Slot, error) {
	slot := session.Slot{
		Year:     now.Year(),
		Month:    int(now.Month()) - 1,
		Currency: strings.ToUpper(strings.TrimSpace(query.Get("currency"))),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return session.Slot{}, fmt.Errorf("%w: year %q", ErrBadRequest, v)
		}
		slot.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || !core.ValidMonth(m) {
			return session.Slot{}, fmt.Errorf("%w: month %q", ErrBadRequest, v)
		}
		slot.Month = m
	}
	return slot, nil
}

// ParseKeyBody extracts the hex key from a plain text or JSON body.
func ParseKeyBody(body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var req struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal([]byte(trimmed), &req); err != nil {
			return "", fmt.Errorf("%w: key body is not valid JSON", ErrBadRequest)
		}
		trimmed = strings.TrimSpace(req.Key)
	}
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty key", core.ErrInvalidKeyMaterial)
	}
	return trimmed, nil
}

// readBody reads at most limit bytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: read body: %v", ErrBadRequest, err)
	}
	return body, nil
}

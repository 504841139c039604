package http

import (
	"net/http"
	"strings"
	"time"

	"cifra/internal/accounting"
	"cifra/internal/core"
	"cifra/internal/log"
	"cifra/internal/session"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready only while a session key is set.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Session().Ready() {
		notReady().Write(w)
		return
	}
	NewJSONResponse().Body(statusBody{Status: "ready"}).Write(w)
}

type stateBody struct {
	Ready      bool             `json:"ready"`
	KeyID      string           `json:"keyId,omitempty"`
	Generation uint64           `json:"generation"`
	InFlight   int              `json:"inFlight"`
	Requests   []session.Status `json:"requests"`
}

func (s *Server) state() stateBody {
	body := stateBody{
		Generation: s.engine.Session().Generation(),
		InFlight:   s.engine.InFlight(),
		Requests:   s.engine.Statuses(),
	}
	if h, err := s.engine.Session().Key(); err == nil {
		body.Ready = true
		body.KeyID = h.ID()
	}
	return body
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.state()).Write(w)
}

// handleSetKey imports the hex key in the request body. The body may be
// plain text or {"key": "..."}.
func (s *Server) handleSetKey(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r, maxKeyBodyBytes)
	if err != nil {
		errorResponse(r.Context(), s.logger, err).Write(w)
		return
	}
	keyHex, err := ParseKeyBody(raw)
	if err != nil {
		errorResponse(r.Context(), s.logger, err).Write(w)
		return
	}
	if err := s.engine.Session().SetKey(keyHex); err != nil {
		errorResponse(r.Context(), s.logger, err).Write(w)
		return
	}
	NewJSONResponse().Body(s.state()).Write(w)
}

func (s *Server) handleClearKey(w http.ResponseWriter, r *http.Request) {
	s.engine.Session().Clear()
	NewJSONResponse().Status(http.StatusOK).Body(s.state()).Write(w)
}

func (s *Server) handleDecryptSnapshot(w http.ResponseWriter, r *http.Request) {
	slot, err := ParseSlot(r.URL.Query(), s.cal.Now())
	if err != nil {
		errorResponse(r.Context(), s.logger, err).Write(w)
		return
	}
	s.decrypt(w, r, session.RequestKey{Kind: session.KindSnapshot, Slot: slot})
}

func (s *Server) handleDecryptTransactions(w http.ResponseWriter, r *http.Request) {
	slot, err := ParseSlot(r.URL.Query(), s.cal.Now())
	if err != nil {
		errorResponse(r.Context(), s.logger, err).Write(w)
		return
	}
	s.decrypt(w, r, session.RequestKey{Kind: session.KindTransactions, Slot: slot})
}

func (s *Server) handleDecryptAccounting(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var kind session.Kind
	switch strings.TrimSpace(query.Get("kind")) {
	case "", "current":
		kind = session.KindAccountingCurrent
	case "historical":
		kind = session.KindAccountingHistorical
	default:
		errorResponse(r.Context(), s.logger, session.ErrUnknownKind).Write(w)
		return
	}
	slot, err := ParseSlot(query, s.cal.Now())
	if err != nil {
		errorResponse(r.Context(), s.logger, err).Write(w)
		return
	}
	weekly := strings.TrimSpace(query.Get("view")) == "weekly"
	s.decrypt(w, r, session.RequestKey{Kind: kind, Slot: slot}, func(resp *decryptResponse) {
		if weekly && resp.Summary != nil {
			view := accounting.WeeklyCashFlow(resp.Summary, resp.Period.Year, resp.Period.Month, s.cal)
			resp.Weekly = &view
		}
	})
}

// decrypt runs one transform for key on the request body. decorate may
// extend the response before it is written.
func (s *Server) decrypt(w http.ResponseWriter, r *http.Request, key session.RequestKey, decorate ...func(*decryptResponse)) {
	ctx := r.Context()
	if !s.engine.Session().Ready() {
		notReady().Write(w)
		return
	}

	body, err := readBody(w, r, s.maxBodyBytes)
	if err != nil {
		errorResponse(ctx, s.logger, err).Write(w)
		return
	}

	out, err := s.engine.Decrypt(ctx, key, body)
	if err != nil {
		errorResponse(ctx, s.logger, err).Write(w)
		return
	}

	log.FromContext(ctx).DebugContext(ctx, "Decrypted",
		log.FieldKind, string(key.Kind),
		log.FieldCount, len(out.Failures()))
	resp := decryptBody(out)
	for _, fn := range decorate {
		fn(&resp)
	}
	NewJSONResponse().Body(resp).Write(w)
}

type failureView struct {
	RecordID string `json:"recordId,omitempty"`
	Field    string `json:"field"`
	Kind     string `json:"kind"`
}

func failureViews(in []core.FieldError) []failureView {
	out := make([]failureView, 0, len(in))
	for _, fe := range in {
		out = append(out, failureView{RecordID: fe.RecordID, Field: fe.Field, Kind: fe.Kind()})
	}
	return out
}

type decryptResponse struct {
	Status       string                  `json:"status"`
	Kind         session.Kind            `json:"kind"`
	Period       session.Slot            `json:"period"`
	Snapshot     *core.Snapshot          `json:"snapshot,omitempty"`
	Transactions []core.Transaction      `json:"transactions,omitempty"`
	Summary      *core.AccountingSummary `json:"summary,omitempty"`
	Failures     []failureView           `json:"failures"`
	Dropped      []failureView           `json:"dropped,omitempty"`
	Weekly       *core.WeeklyCashFlow    `json:"weekly,omitempty"`
}

func decryptBody(out *session.Output) decryptResponse {
	resp := decryptResponse{Status: "ok", Kind: out.Kind, Period: out.Slot}
	switch {
	case out.Snapshot != nil:
		resp.Snapshot = out.Snapshot.Snapshot
		resp.Failures = failureViews(out.Snapshot.Failures)
	case out.Transactions != nil:
		resp.Transactions = out.Transactions.Transactions
		resp.Failures = failureViews(out.Transactions.Report.Failures)
		resp.Dropped = failureViews(out.Transactions.Report.Dropped)
	case out.Accounting != nil:
		resp.Summary = out.Accounting.Summary
		resp.Failures = failureViews(out.Accounting.Failures)

	}
	return resp
}

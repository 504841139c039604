package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cifra/internal/accounting"
	"cifra/internal/core"
	"cifra/internal/fanout"
	"cifra/internal/keys"
	"cifra/internal/log"
	"cifra/internal/metrics"
	"cifra/internal/snapshot"
	"cifra/internal/transactions"
)

// ErrSuperseded is returned for a request whose slot was taken over by a
// newer request, or whose key was rotated while it ran.
var ErrSuperseded = errors.New("superseded by a newer request")

const (
	resultSuperseded   = "superseded"
	kindMalformedInput = "malformed_input"
)

// Transformers bundles the transforms an Engine can run.
type Transformers struct {
	Snapshot     *snapshot.Transformer
	Transactions *transactions.Transformer
	Accounting   *accounting.Transformer
}

// Engine runs transforms with last-write-wins semantics per request key.
type Engine struct {
	session *Session
	tf      Transformers
	metrics metrics.Recorder
	logger  *log.Logger
	now     func() time.Time

	mu       sync.Mutex
	inflight map[RequestKey]*request
	status   map[RequestKey]Status
}

type request struct {
	id         string
	key        RequestKey
	generation uint64
	cancel     context.CancelFunc
}

// NewEngine creates an Engine. Every in-flight request is canceled and
// superseded when the session key rotates.
func NewEngine(s *Session, tf Transformers, recorder metrics.Recorder, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Discard()
	}
	e := &Engine{
		session:  s,
		tf:       tf,
		metrics:  metrics.OrNoop(recorder),
		logger:   logger.WithComponent(log.ComponentSession),
		now:      time.Now,
		inflight: make(map[RequestKey]*request),
		status:   make(map[RequestKey]Status),
	}
	s.OnRotate(e.cancelAll)
	return e
}

// Session returns the session the engine decrypts with.
func (e *Engine) Session() *Session { return e.session }

// Snapshot decrypts a raw analytics snapshot.
func (e *Engine) Snapshot(ctx context.Context, slot Slot, raw *snapshot.Data) (*snapshot.Result, error) {
	key := RequestKey{Kind: KindSnapshot, Slot: slot}
	return run(ctx, e, key, func(ctx context.Context, h *keys.Handle) (*snapshot.Result, int, error) {
		res, err := e.tf.Snapshot.Transform(ctx, h, raw)
		if err != nil {
			return nil, 0, err
		}
		return res, len(res.Failures), nil
	})
}

// Transactions decrypts a raw transaction batch.
func (e *Engine) Transactions(ctx context.Context, slot Slot, raw *transactions.Batch) (*transactions.Result, error) {
	key := RequestKey{Kind: KindTransactions, Slot: slot}
	return run(ctx, e, key, func(ctx context.Context, h *keys.Handle) (*transactions.Result, int, error) {
		res, err := e.tf.Transactions.Transform(ctx, h, raw)
		if err != nil {
			return nil, 0, err
		}
		return res, len(res.Report.Failures) + len(res.Report.Dropped), nil
	})
}

// AccountingCurrent decrypts the book of the month in progress.
func (e *Engine) AccountingCurrent(ctx context.Context, slot Slot, raw *accounting.CurrentMonth) (*accounting.Result, error) {
	key := RequestKey{Kind: KindAccountingCurrent, Slot: slot}
	return run(ctx, e, key, func(ctx context.Context, h *keys.Handle) (*accounting.Result, int, error) {
		res, err := e.tf.Accounting.TransformCurrentMonth(ctx, h, raw)
		if err != nil {
			return nil, 0, err
		}
		return res, len(res.Failures), nil
	})
}

// AccountingHistorical decrypts a closed month. The slot is taken from raw.
func (e *Engine) AccountingHistorical(ctx context.Context, raw *accounting.Historical) (*accounting.Result, error) {
	key := RequestKey{Kind: KindAccountingHistorical}
	if raw != nil {
		key.Slot = Slot{Year: raw.Year, Month: raw.Month, Currency: raw.CurrencyCode}
	}
	return run(ctx, e, key, func(ctx context.Context, h *keys.Handle) (*accounting.Result, int, error) {
		res, err := e.tf.Accounting.TransformHistorical(ctx, h, raw)
		if err != nil {
			return nil, 0, err
		}
		return res, len(res.Failures), nil
	})
}

// Status returns the last known state of key.
func (e *Engine) Status(key RequestKey) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.status[key]; ok {
		return st
	}
	return Status{Key: key, State: Idle}
}

// Statuses returns every tracked slot, ordered by key.
func (e *Engine) Statuses() []Status {
	e.mu.Lock()
	out := make([]Status, 0, len(e.status))
	for _, st := range e.status {
		out = append(out, st)
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// InFlight returns the number of running requests.
func (e *Engine) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inflight)
}

func run[R any](ctx context.Context, e *Engine, key RequestKey, fn func(context.Context, *keys.Handle) (R, int, error)) (R, error) {
	var zero R
	start := e.now()

	ctx, req := e.begin(ctx, key)
	defer req.cancel()

	h, err := e.session.Key()
	if err != nil {
		e.finish(ctx, req, Errored, 0, err, start)
		return zero, err
	}

	e.transition(req, Decrypting)
	ctx = fanout.OnBarrier(ctx, func() { e.transition(req, Joining) })

	res, failures, err := fn(ctx, h)
	state := Ready
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		state = Idle
	default:
		state = Errored
	}
	if !e.finish(ctx, req, state, failures, err, start) {
		return zero, ErrSuperseded
	}
	if err != nil {
		return zero, err
	}
	return res, nil
}

// begin registers a request for key, canceling the one it supersedes.
func (e *Engine) begin(ctx context.Context, key RequestKey) (context.Context, *request) {
	ctx, cancel := context.WithCancel(ctx)
	req := &request{
		id:         uuid.NewString(),
		key:        key,
		generation: e.session.Generation(),
		cancel:     cancel,
	}

	e.mu.Lock()
	if prev, ok := e.inflight[key]; ok {
		prev.cancel()
		e.logger.DebugContext(ctx, "Request superseded",
			log.FieldKind, string(key.Kind),
			log.FieldRequestID, prev.id)
	}
	e.inflight[key] = req
	e.status[key] = Status{Key: key, State: AwaitingKey, RequestID: req.id, UpdatedAt: e.now()}
	e.mu.Unlock()
	return ctx, req
}

func (e *Engine) transition(req *request, state State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[req.key] != req {
		return
	}
	st := e.status[req.key]
	st.State = state
	st.UpdatedAt = e.now()
	e.status[req.key] = st
}

// finish records the outcome of req. It reports false when req lost its
// slot or its key generation while running; the result must then be
// discarded.
func (e *Engine) finish(ctx context.Context, req *request, state State, failures int, err error, start time.Time) bool {
	elapsed := e.now().Sub(start)

	e.mu.Lock()
	current := e.inflight[req.key] == req && e.session.Generation() == req.generation
	if e.inflight[req.key] == req {
		delete(e.inflight, req.key)
	}
	if current {
		st := Status{Key: req.key, State: state, RequestID: req.id, Failures: failures, UpdatedAt: e.now()}
		if err != nil {
			st.Error = errorKind(err)
		}
		e.status[req.key] = st
	}
	e.mu.Unlock()

	result := errorKind(err)
	if !current {
		result = resultSuperseded
	}
	e.metrics.TransformDone(string(req.key.Kind), result, elapsed)

	attrs := []any{
		log.FieldKind, string(req.key.Kind),
		log.FieldYear, req.key.Year,
		log.FieldMonth, req.key.Month,
		log.FieldCurrency, req.key.Currency,
		log.FieldRequestID, req.id,
		log.FieldState, state.String(),
		log.FieldDuration, elapsed.Milliseconds(),
	}
	switch {
	case !current:
		e.logger.DebugContext(ctx, "Discarding superseded result", attrs...)
	case err != nil:
		e.logger.WarnContext(ctx, "Transform failed", append(attrs, log.FieldErrorKind, result)...)
	default:
		e.logger.DebugContext(ctx, "Transform done", append(attrs, log.FieldCount, failures)...)
	}
	return current
}

// errorKind is core.ErrorKind extended with the engine's own errors.
func errorKind(err error) string {
	if errors.Is(err, ErrMalformedInput) {
		return kindMalformedInput
	}
	return core.ErrorKind(err)
}

// cancelAll supersedes every in-flight request.
func (e *Engine) cancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, req := range e.inflight {
		req.cancel()
		delete(e.inflight, key)
		st := e.status[key]
		st.State = Idle
		st.UpdatedAt = e.now()
		e.status[key] = st
	}
}

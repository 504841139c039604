package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorKind  = "error_kind"
	FieldOperation  = "operation"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldCurrency   = "currency"
	FieldKind       = "kind"
	FieldRecordID   = "record_id"
	FieldField      = "field"
	FieldKeyID      = "key_id"
	FieldGeneration = "generation"
	FieldState      = "state"
	FieldCount      = "count"
	FieldPayloadID  = "payload_id"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentKeys         = "keys"
	ComponentEnvelope     = "envelope"
	ComponentSnapshot     = "snapshot"
	ComponentTransactions = "transactions"
	ComponentAccounting   = "accounting"
	ComponentSession      = "session"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentSheets       = "sheets"
	ComponentMetrics      = "metrics"
	ComponentRateLimit    = "rate_limit"
	ComponentTrace        = "trace"
)

// Operations defines standard operation names
const (
	OpImportKey = "import_key"
	OpClearKey  = "clear_key"
	OpDecrypt   = "decrypt"
	OpTransform = "transform"
	OpStore     = "store"
	OpExport    = "export"
	OpConsume   = "consume"
	OpPublish   = "publish"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds the error message and its taxonomy kind
func (f LogFields) WithError(err error, kind string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorKind] = kind
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPeriod adds the (year, month, currency) a transform runs for
func (f LogFields) WithPeriod(year, month int, currency string) LogFields {
	f[FieldYear] = year
	f[FieldMonth] = month
	f[FieldCurrency] = currency
	return f
}

// WithField adds the record and field a per-value failure belongs to
func (f LogFields) WithField(recordID, field string) LogFields {
	if recordID != "" {
		f[FieldRecordID] = recordID
	}
	f[FieldField] = field
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

// WithHTTPRequest adds the request line fields
func (f LogFields) WithHTTPRequest(method, path string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	return f
}

// WithHTTPResponse adds the response status and timing
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// WithClientIP adds the client address
func (f LogFields) WithClientIP(ip string) LogFields {
	if ip != "" {
		f[FieldClientIP] = ip
	}
	return f
}

package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldSession    = "session_id"
	FieldEntityCode = "entity_code"
	FieldPeriodCode = "period_code"
	FieldScopeCode  = "scope_code"
	FieldDataset    = "dataset"
	FieldURL        = "url"
	FieldRows       = "rows"
	FieldLimit      = "limit"
	FieldCacheKey   = "cache_key"
	FieldCount      = "count"
	FieldCodes      = "codes"
	FieldBackend    = "backend"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentCatalog   = "catalog"
	ComponentUpstream  = "upstream"
	ComponentCache     = "cache"
	ComponentNormalize = "normalize"
	ComponentAggregate = "aggregate"
	ComponentDerived   = "derived"
	ComponentDashboard = "dashboard"
	ComponentExport    = "export"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
)

// Operations defines standard operation names
const (
	OpLoad     = "load"
	OpFetch    = "fetch"
	OpNormal   = "normalize"
	OpValidate = "validate"
	OpExport   = "export"
	OpRender   = "render"
	OpImport   = "import"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
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

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithSelection adds the entity/period pair a dashboard operation works on.
// Empty values are skipped.
func (f LogFields) WithSelection(entityCode, periodCode string) LogFields {
	if entityCode != "" {
		f[FieldEntityCode] = entityCode
	}
	if periodCode != "" {
		f[FieldPeriodCode] = periodCode
	}
	return f
}

// WithFetch adds upstream request fields
func (f LogFields) WithFetch(dataset, url string, rows int) LogFields {
	f[FieldDataset] = dataset
	f[FieldURL] = url
	f[FieldRows] = rows
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
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

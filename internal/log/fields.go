package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldRunID        = "run_id"
	FieldSource       = "source"
	FieldInputRows    = "input_rows"
	FieldGroups       = "groups"
	FieldWarnings     = "parse_warnings"
	FieldFallbacks    = "fallbacks"
	FieldTotalCost    = "total_cost"
	FieldTargetRow    = "target_row"
	FieldSheetRow     = "sheet_row"
	FieldRows         = "rows"
	FieldBackend      = "backend"
	FieldAppendMode   = "append_mode"
	FieldError        = "error"
	FieldErrorType    = "error_type"
	FieldOperation    = "operation"
	FieldDuration     = "duration_ms"
	FieldCacheHitRate = "cache_hit_rate"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentPipeline = "pipeline"
	ComponentIngest   = "ingest"
	ComponentExport   = "export"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
	ComponentBackend  = "backend"
)

// Operations defines standard operation names
const (
	OpRun      = "run"
	OpRead     = "read"
	OpAppend   = "append"
	OpPlan     = "plan"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpValidate = "validate"
	OpParse    = "parse"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// Error type categories
const (
	ErrorTypeInput         = "input_schema_error"
	ErrorTypeSchema        = "schema_mismatch"
	ErrorTypeStore         = "store_io_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithRunID(id string) LogFields {
	f[FieldRunID] = id
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error message and its category.
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

// WithRun adds the summary counters of a pipeline run.
func (f LogFields) WithRun(inputRows, groups, warnings int, totalCost string) LogFields {
	f[FieldInputRows] = inputRows
	f[FieldGroups] = groups
	f[FieldWarnings] = warnings
	f[FieldTotalCost] = totalCost
	return f
}

// WithPlan adds the append offsets.
func (f LogFields) WithPlan(targetRow, sheetRow, rows int) LogFields {
	f[FieldTargetRow] = targetRow
	f[FieldSheetRow] = sheetRow
	f[FieldRows] = rows
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

package logging

import "log/slog"

// Common field names for consistent logging.
const (
	FieldRequestID    = "request_id"
	FieldUsername     = "username"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatus       = "status"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldSolicitation = "solicitation_id"
	FieldWorkflow     = "workflow_status"
)

// Username returns a slog attribute for the username.
func Username(name string) slog.Attr {
	return slog.String(FieldUsername, name)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Solicitation returns a slog attribute for a solicitation id.
func Solicitation(id int64) slog.Attr {
	return slog.Int64(FieldSolicitation, id)
}

// WorkflowStatus returns a slog attribute for a pipeline status.
func WorkflowStatus(s string) slog.Attr {
	return slog.String(FieldWorkflow, s)
}

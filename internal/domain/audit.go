package domain

import (
	"context"
	"time"
)

// AuditEntry records one tool invocation. Only metadata is kept: success
// payloads and argument values are never written to the audit trail.
type AuditEntry struct {
	ID         string
	Tool       string
	Outcome    string // success | unknown_tool | invalid_arguments | missing_credential | upstream_error | not_found | io_failure
	Message    string // failure message, empty on success
	DurationMS int64
	CreatedAt  time.Time
}

// AuditSink receives invocation records.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

package relay

import (
	"context"
	"time"

	"github.com/nerrad567/lightrelay/internal/audit"
	"github.com/nerrad567/lightrelay/internal/command"
)

// auditWriteTimeout bounds one audit insert.
const auditWriteTimeout = 2 * time.Second

// AuditRecorder writes one audit_logs row per handled command.
type AuditRecorder struct {
	repo   audit.Repository
	logger Logger
}

var _ command.Listener = (*AuditRecorder)(nil)

// NewAuditRecorder creates an AuditRecorder. logger may be nil.
func NewAuditRecorder(repo audit.Repository, logger Logger) *AuditRecorder {
	return &AuditRecorder{repo: repo, logger: orNoop(logger)}
}

// OnOutcome implements command.Listener. The row is written even when ctx
// is already cancelled so commands handled during shutdown are kept.
func (r *AuditRecorder) OnOutcome(ctx context.Context, o command.Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	entry := AuditLogFor(o)
	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Warn("audit write failed", "command", o.Command, "error", err)
		return
	}
	r.logger.Debug("audit recorded", "id", entry.ID, "command", o.Command)
}

// AuditLogFor maps an outcome to its audit row. EntityID holds the command
// name; the rest of the outcome goes into Details.
func AuditLogFor(o command.Outcome) *audit.AuditLog {
	details := map[string]any{
		"result":     string(o.Result),
		"args":       o.Args,
		"devices":    o.Devices,
		"latency_ms": o.Latency.Milliseconds(),
	}
	if o.ID != "" {
		details["request_id"] = o.ID
	}
	if o.ColorName != "" {
		details["color"] = o.ColorName
	}
	if hasValue(o) {
		details["rgb"] = o.Value.RGB().String()
	}
	if o.Err != nil {
		details["error"] = o.Err.Error()
	}

	return &audit.AuditLog{
		Action:     audit.ActionCommand,
		EntityType: audit.EntityTypeFleet,
		EntityID:   o.Command,
		UserID:     o.User,
		Source:     o.Source,
		Details:    details,
		CreatedAt:  o.At,
	}
}

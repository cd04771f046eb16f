package audit

import (
	"context"
	"log/slog"
	"time"

	"phi-gateway/pkg/requestcontext"
)

// Recorder is the PHI access log entry point handed to handlers that touch
// protected health data. Calls are fire-and-forget: the record is queued on
// the worker and the call returns immediately. A disabled recorder (local
// mode) silently does nothing.
type Recorder struct {
	worker  *Worker
	logger  *slog.Logger
	enabled bool
}

func NewRecorder(worker *Worker, logger *slog.Logger, enabled bool) *Recorder {
	return &Recorder{worker: worker, logger: logger, enabled: enabled}
}

// Record schedules a PHI access record for the identity attached to ctx.
// No identity means nothing to attribute the access to: the call is a no-op.
// Never returns an error and never panics into the caller.
func (r *Recorder) Record(ctx context.Context, action, resourceType, resourceID string) {
	if !r.enabled {
		return
	}

	userID := requestcontext.UserID(ctx)
	if userID == "" {
		return
	}

	r.worker.EnqueuePHI(PHIRecord{
		Timestamp:    time.Now().UTC(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    requestcontext.ClientIP(ctx),
		UserAgent:    requestcontext.UserAgent(ctx),
	})
}

package transaction

import (
	"context"

	"payvault/internal/queue"
)

// RegisterHandlers wires the orchestrator's job handlers onto the payments
// worker pool.
func RegisterHandlers(w *queue.Worker, svc Service) {
	w.Handle(JobProcess, func(ctx context.Context, job *queue.Job) error {
		var payload ProcessPayload
		if err := job.DecodePayload(&payload); err != nil {
			return err
		}
		return svc.Process(ctx, payload.TransactionID)
	})
}

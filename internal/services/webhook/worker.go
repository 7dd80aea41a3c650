package webhook

import (
	"context"

	"payvault/internal/queue"
)

// RegisterHandlers wires webhook delivery onto the webhooks worker pool.
func RegisterHandlers(w *queue.Worker, svc Service) {
	w.Handle(JobDeliver, func(ctx context.Context, job *queue.Job) error {
		var payload DeliverPayload
		if err := job.DecodePayload(&payload); err != nil {
			return err
		}
		return svc.Send(ctx, payload.TransactionID, payload.Event)
	})
}

package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one file handed to a worker.
type Job struct {
	Path        string
	UserID      uuid.UUID
	SubmittedAt time.Time
}

// Handler processes a single job. The context carries the per-job timeout.
type Handler func(ctx context.Context, job Job) error

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

package workers

import (
	"context"
	"time"
)

// Worker is a scheduled background job
type Worker interface {
	Name() string
	// Schedule is a cron spec understood by robfig/cron, e.g. "@every 15m".
	Schedule() string
	Ready(now time.Time) bool
	Execute(ctx context.Context) error
}

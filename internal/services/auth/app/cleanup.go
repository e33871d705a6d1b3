package server

import (
	"context"
	"log"
	"time"
)

type expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// cleaner removes rows that can no longer be used.
type cleaner struct {
	tokens   expirer
	states   expirer
	sessions expirer
}

func (c *cleaner) run(ctx context.Context) {
	for name, target := range map[string]expirer{
		"verification tokens": c.tokens,
		"oauth states":        c.states,
		"sessions":            c.sessions,
	} {
		if target == nil {
			continue
		}
		deleted, err := target.DeleteExpired(ctx)
		if err != nil {
			log.Printf("cleanup %s: %v", name, err)
			continue
		}
		if deleted > 0 {
			log.Printf("cleanup removed %d expired %s", deleted, name)
		}
	}
}

// StartCleanup starts periodic removal of expired verification tokens,
// OAuth states and, when expiry is enforced, sessions.
func (s *Server) StartCleanup(ctx context.Context, interval time.Duration) {
	if s == nil || s.cleanup == nil || interval <= 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup.run(ctx)
			}
		}
	}()
}

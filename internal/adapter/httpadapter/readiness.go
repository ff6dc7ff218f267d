package httpadapter

import (
	"context"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

type readinessGroup []sharedobs.ReadinessChecker

// AllReady combines checkers into one that reports the first failure.
// Nil checkers are skipped.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	var g readinessGroup
	for _, c := range checkers {
		if c != nil {
			g = append(g, c)
		}
	}
	return g
}

func (g readinessGroup) CheckReadiness(ctx context.Context) error {
	for _, c := range g {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

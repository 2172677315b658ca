package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/lostfound-go-api/internal/models"
	"github.com/noah-isme/lostfound-go-api/internal/repository"
)

// StatusMachine applies report status events through conditional store updates.
type StatusMachine struct{}

// Apply moves the given reports along the transition triggered by event. Reports that are
// not in the event's source status are skipped; the returned count only covers rows that
// actually moved, which is how concurrent callers learn whether they won.
func (StatusMachine) Apply(ctx context.Context, repo repository.ReportRepository, event models.StatusEvent, ids ...string) (int64, error) {
	from, to, ok := models.NextStatus(event)
	if !ok || from == "" {
		return 0, fmt.Errorf("status event %q cannot be applied to stored reports", event)
	}
	if !from.CanAdvanceTo(to) {
		return 0, fmt.Errorf("status event %q would move %s backwards to %s", event, from, to)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	return repo.TransitionStatus(ctx, ids, from, to)
}

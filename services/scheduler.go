// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// reconcileSlack keeps consecutive sweeps overlapping. An award stamps its
// ledger row before its transaction commits, so a row may appear behind the
// previous sweep's start.
const reconcileSlack = 30 * time.Second

// MilestoneReconciler re-runs milestone checks for users who earned essence
// since the previous sweep. It recovers unlocks lost between an award commit
// and its asynchronous milestone check.
type MilestoneReconciler struct {
	Essence      *EssenceService
	Achievements *AchievementService
	Clock        clockwork.Clock

	mu        sync.Mutex
	lastSweep time.Time
}

func NewMilestoneReconciler(essence *EssenceService, achievements *AchievementService, clock clockwork.Clock, lookback time.Duration) *MilestoneReconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MilestoneReconciler{
		Essence:      essence,
		Achievements: achievements,
		Clock:        clock,
		lastSweep:    clock.Now().UTC().Add(-lookback),
	}
}

// Sweep checks milestones for every user with ledger activity since the last
// sweep and returns how many users it visited.
func (r *MilestoneReconciler) Sweep(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := r.Clock.Now().UTC()
	users, err := r.Essence.UsersWithEssenceSince(ctx, r.lastSweep)
	if err != nil {
		return 0, fmt.Errorf("list active users: %w", err)
	}
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := r.Achievements.CheckAllMilestones(ctx, userID); err != nil {
			log.Printf("[SCHEDULER] milestone sweep for %s: %v", userID, err)
		}
	}
	r.lastSweep = started.Add(-reconcileSlack)
	return len(users), nil
}

// StartReconcileScheduler runs Sweep every interval until ctx is done.
func StartReconcileScheduler(ctx context.Context, r *MilestoneReconciler, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(r.Clock))
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := r.Sweep(ctx)
			if err != nil {
				log.Printf("[SCHEDULER] Reconcile error: %v", err)
				return
			}
			if n > 0 {
				log.Printf("✅ [SCHEDULER] Reconciled milestones for %d user(s)", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Printf("[SCHEDULER] shutdown: %v", err)
		}
	}()
	return sched, nil
}

// workers/action_pipeline.go
package workers

import (
	"context"
	"errors"
	"log"
	"sync"

	"essence-engine/services"
)

// ErrQueueFull is returned by Enqueue when the buffer is saturated.
var ErrQueueFull = errors.New("action queue full")

// Awarder turns a completed action into essence.
type Awarder interface {
	HandleAction(ctx context.Context, evt services.ActionCompleted) (bool, error)
}

// MilestoneChecker runs the milestone checks for a user.
type MilestoneChecker interface {
	CheckAllMilestones(ctx context.Context, userID string) error
}

// ActionPipeline consumes ActionCompleted events on a pool of workers. Each
// event is awarded and, when granted, followed by a milestone check.
type ActionPipeline struct {
	awarder    Awarder
	milestones MilestoneChecker
	events     chan services.ActionCompleted
	workers    int
	wg         sync.WaitGroup
}

func NewActionPipeline(awarder Awarder, milestones MilestoneChecker, workers, buffer int) *ActionPipeline {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	return &ActionPipeline{
		awarder:    awarder,
		milestones: milestones,
		events:     make(chan services.ActionCompleted, buffer),
		workers:    workers,
	}
}

// Enqueue hands evt to the pool without blocking.
func (p *ActionPipeline) Enqueue(evt services.ActionCompleted) error {
	select {
	case p.events <- evt:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers. They exit when ctx is done; Wait blocks until they have.
func (p *ActionPipeline) Start(ctx context.Context) {
	log.Printf("🔁 [WORKER] Starting action pipeline with %d workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case evt := <-p.events:
					p.process(ctx, evt)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

func (p *ActionPipeline) Wait() {
	p.wg.Wait()
	log.Println("⏹️ [WORKER] Action pipeline stopped")
}

func (p *ActionPipeline) process(ctx context.Context, evt services.ActionCompleted) {
	granted, err := p.awarder.HandleAction(ctx, evt)
	if err != nil {
		log.Printf("❌ [WORKER] %s %s for user %s: %v", evt.SourceKind, evt.SourceID, evt.UserID, err)
		return
	}
	if !granted {
		return
	}
	if err := p.milestones.CheckAllMilestones(ctx, evt.UserID); err != nil {
		log.Printf("❌ [WORKER] milestone check for %s: %v", evt.UserID, err)
	}
}

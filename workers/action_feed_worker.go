// workers/action_feed_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"time"

	"essence-engine/services"
	"essence-engine/utils"

	"github.com/jonboulle/clockwork"
)

// ActionFeedResponse is the body returned by the todo/habit completion feed.
type ActionFeedResponse struct {
	Actions []services.ActionCompleted `json:"actions"`
}

// Enqueuer accepts actions for asynchronous processing.
type Enqueuer interface {
	Enqueue(evt services.ActionCompleted) error
}

// ActionFeedWorker polls the completion feed and enqueues new actions.
// Re-delivered actions are harmless: awards are idempotent per source id.
type ActionFeedWorker struct {
	feedURL      string
	serviceToken string
	interval     time.Duration
	sink         Enqueuer
	clock        clockwork.Clock
	httpClient   *http.Client

	cursor time.Time
}

func NewActionFeedWorker(feedURL, serviceToken string, interval time.Duration, sink Enqueuer, clock clockwork.Clock) *ActionFeedWorker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ActionFeedWorker{
		feedURL:      feedURL,
		serviceToken: serviceToken,
		interval:     interval,
		sink:         sink,
		clock:        clock,
		httpClient:   utils.HTTPClient,
		cursor:       clock.Now().UTC().Add(-interval),
	}
}

func (w *ActionFeedWorker) Start(ctx context.Context) {
	log.Println("🔁 [FEED] Starting action feed worker…")
	go w.run(ctx)
}

func (w *ActionFeedWorker) run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if _, err := w.Poll(ctx); err != nil {
				log.Printf("[FEED] ❌ Poll failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ [FEED] Action feed worker stopped")
			return
		}
	}
}

// Poll fetches actions completed since the cursor and enqueues them oldest
// first. It returns how many were enqueued; the cursor never passes the first
// rejected action.
func (w *ActionFeedWorker) Poll(ctx context.Context) (int, error) {
	base, err := url.Parse(w.feedURL)
	if err != nil {
		return 0, fmt.Errorf("invalid action feed URL '%s': %w", w.feedURL, err)
	}
	q := base.Query()
	q.Set("since", w.cursor.UTC().Format(time.RFC3339))
	base.RawQuery = q.Encode()
	finalURL := base.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request to action feed failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("action feed non-200 response: %d: %s", resp.StatusCode, body)
	}

	var feed ActionFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return 0, fmt.Errorf("failed to decode action feed response: %w", err)
	}

	sort.SliceStable(feed.Actions, func(i, j int) bool {
		return feed.Actions[i].CompletedAt.Before(feed.Actions[j].CompletedAt)
	})

	enqueued := 0
	for _, evt := range feed.Actions {
		if err := w.sink.Enqueue(evt); err != nil {
			log.Printf("[FEED] ⚠️ %s %s deferred: %v", evt.SourceKind, evt.SourceID, err)
			// The next poll must include the rejected action.
			if retry := evt.CompletedAt.Add(-time.Nanosecond); retry.Before(w.cursor) {
				w.cursor = retry
			}
			break
		}
		enqueued++
		if evt.CompletedAt.After(w.cursor) {
			w.cursor = evt.CompletedAt
		}
	}
	if enqueued > 0 {
		log.Printf("[FEED] 📥 Enqueued %d action(s), cursor=%s", enqueued, w.cursor.Format(time.RFC3339))
	}
	return enqueued, nil
}

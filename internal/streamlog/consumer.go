package streamlog

import (
	"context"
	"log/slog"

	"github.com/your-org/falldetect/internal/observability"
)

// Consumer reads the newest entry of one log and hands out each entry id
// at most once. Entries written between two polls are skipped: only the
// newest one is ever seen.
type Consumer struct {
	log      Log
	key      string
	cameraID string
	lastSeen string
}

func NewConsumer(log Log, key, cameraID string) *Consumer {
	return &Consumer{log: log, key: key, cameraID: cameraID}
}

// Poll returns the newest entry if its id differs from the last one
// returned. Read errors are logged and reported as no data.
func (c *Consumer) Poll(ctx context.Context) (Entry, bool) {
	entry, ok, err := c.log.PeekLatest(ctx, c.key)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("poll upstream", "camera_id", c.cameraID, "key", c.key, "error", err)
			observability.PollErrors.WithLabelValues(c.cameraID).Inc()
		}
		return Entry{}, false
	}
	if !ok || entry.ID == c.lastSeen {
		return Entry{}, false
	}

	c.lastSeen = entry.ID
	return entry, true
}

// LastSeen is the id of the last entry Poll returned.
func (c *Consumer) LastSeen() string {
	return c.lastSeen
}

package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/frictionlabs/frictiond/internal/domain"
	"github.com/frictionlabs/frictiond/internal/usecase"
)

// SpoolEvent is one usage event dropped into the spool directory by a
// reporting process (the CLI, a shortcut, the shield extension). Files
// are JSON, written whole then renamed in, and consumed exactly once.
//
// Event types:
//
//	usage                   Minutes of guarded-app use to accumulate.
//	threshold_<N>           Usage threshold N crossed; raises friction.
//	budget_exceeded         External report that the daily budget is spent.
//	text_threshold_reached  Prosocial texting allowance is used up.
type SpoolEvent struct {
	Type    string `json:"type"`
	Minutes int    `json:"minutes,omitempty"`
}

const (
	EventUsage = "usage"

	spoolSuffix = ".json"
)

// ParseSpoolFile reads and decodes one spool event file.
func ParseSpoolFile(path string) (SpoolEvent, error) {
	var ev SpoolEvent
	if !strings.HasSuffix(path, spoolSuffix) {
		return ev, fmt.Errorf("spool: not an event file: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ev, fmt.Errorf("spool: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("spool: decode %s: %w", path, err)
	}
	if err := ev.Validate(); err != nil {
		return ev, fmt.Errorf("spool: %s: %w", path, err)
	}
	return ev, nil
}

// Validate checks the event is one the monitor knows how to dispatch.
func (e SpoolEvent) Validate() error {
	switch {
	case e.Type == EventUsage:
		if e.Minutes <= 0 {
			return fmt.Errorf("usage event needs positive minutes, got %d", e.Minutes)
		}
		return nil
	case e.Type == domain.EventBudgetExceeded,
		e.Type == domain.EventTextThresholdReached:
		return nil
	case strings.HasPrefix(e.Type, domain.EventThresholdPrefix):
		if _, err := usecase.ParseThresholdLevel(e.Type); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
}

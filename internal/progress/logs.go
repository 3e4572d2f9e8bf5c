package progress

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/retention-insights/internal/types"
)

// DefaultPollInterval is how often viewers re-read the stage log of an active run
const DefaultPollInterval = 1500 * time.Millisecond

// Current returns the most recently created running log for stage
func Current(logs []types.PipelineStageLog, stage string) (types.PipelineStageLog, bool) {
	var (
		current types.PipelineStageLog
		found   bool
	)
	for _, l := range logs {
		if l.Stage != stage || l.Status != types.StageStatusRunning {
			continue
		}
		// Later entries win ties since logs are listed oldest first.
		if !found || !l.CreatedAt.Before(current.CreatedAt) {
			current = l
			found = true
		}
	}
	return current, found
}

// Active returns the current running log of every stage that has one, in pipeline order
func Active(logs []types.PipelineStageLog) []types.PipelineStageLog {
	var out []types.PipelineStageLog
	for _, stage := range Order {
		if l, ok := Current(logs, stage); ok {
			out = append(out, l)
		}
	}
	return out
}

// Outcome is the terminal state of a run as seen through its stage log
type Outcome int

// Outcomes
const (
	OutcomeRunning Outcome = iota
	OutcomeCompleted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	}
	return "running"
}

// RunOutcome inspects logs for a terminal entry. Any error entry means the run failed.
func RunOutcome(logs []types.PipelineStageLog) (Outcome, *types.PipelineStageLog) {
	var completed *types.PipelineStageLog
	for i := range logs {
		l := &logs[i]
		if l.Status == types.StageStatusError {
			return OutcomeFailed, l
		}
		if l.Stage == StageCompleted && l.Status == types.StageStatusCompleted {
			completed = l
		}
	}
	if completed != nil {
		return OutcomeCompleted, completed
	}
	return OutcomeRunning, nil
}

// Lister reads a run's stage log
type Lister interface {
	ListStageLogs(ctx context.Context, runID uuid.UUID) ([]types.PipelineStageLog, error)
}

// Follow polls the stage log every interval, calling onChange whenever it differs from the
// previous poll, until the run reaches a terminal entry or ctx is done.
func Follow(ctx context.Context, lister Lister, runID uuid.UUID, interval time.Duration, onChange func([]types.PipelineStageLog)) (Outcome, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		logs, err := lister.ListStageLogs(ctx, runID)
		if err != nil {
			return OutcomeRunning, err
		}
		if fp := fingerprint(logs); fp != last {
			last = fp
			if onChange != nil {
				onChange(logs)
			}
		}
		if outcome, _ := RunOutcome(logs); outcome != OutcomeRunning {
			return outcome, nil
		}

		select {
		case <-ctx.Done():
			return OutcomeRunning, ctx.Err()
		case <-ticker.C:
		}
	}
}

// fingerprint changes whenever a log is appended or updated
func fingerprint(logs []types.PipelineStageLog) string {
	var latest time.Time
	for _, l := range logs {
		if l.UpdatedAt.After(latest) {
			latest = l.UpdatedAt
		}
	}
	return latest.Format(time.RFC3339Nano) + "/" + strconv.Itoa(len(logs))
}

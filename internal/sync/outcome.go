package sync

import "time"

// Entity identifies which record kind a sync cycle covers.
type Entity string

const (
	EntityTransactions Entity = "transactions"
	EntityBudgets      Entity = "budgets"
)

func (e Entity) IsValid() bool {
	return e == EntityTransactions || e == EntityBudgets
}

// State is a sync cycle's position in its state machine. Errored is the
// absorbing state for persistence failures; fallback-completed cycles still
// end in Done.
type State string

const (
	StateFetching           State = "fetching"
	StateConverting         State = "converting"
	StateUpserting          State = "upserting"
	StateCommitting         State = "committing"
	StateRecomputeTriggered State = "recompute_triggered"
	StateDone               State = "done"
	StateErrored            State = "errored"
)

// Outcome summarizes one sync cycle.
type Outcome struct {
	Entity Entity
	State  State

	// Fallback is true when the cycle served the existing local cache
	// instead of remote data (fetch failure, empty remote response, or a
	// fully failed conversion batch).
	Fallback bool

	Fetched            int
	Converted          int
	ConversionFailures int
	Created            int
	Updated            int

	// Err is the fatal error of the cycle, if any. Warning carries
	// non-fatal conditions such as a partial conversion failure.
	Err     error
	Warning error

	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded reports whether the cycle committed fresh remote data.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && !o.Fallback
}

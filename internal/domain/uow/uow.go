package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UnitOfWork runs fn inside a single store transaction. The transaction is
// committed when fn returns nil and rolled back when fn returns an error or
// panics; the connection is released on every path.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type State string

const (
	StateIdle            State = "IDLE"
	StateTransactionOpen State = "TRANSACTION_OPEN"
	StateCommitted       State = "COMMITTED"
	StateRolledBack      State = "ROLLED_BACK"
	StateClosed          State = "CLOSED"
)

var ErrInvalidTransition = errors.New("invalid unit of work state transition")

var transitions = map[State][]State{
	StateIdle:            {StateTransactionOpen, StateClosed},
	StateTransactionOpen: {StateCommitted, StateRolledBack},
	StateCommitted:       {StateClosed},
	StateRolledBack:      {StateClosed},
	StateClosed:          {},
}

func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s State) IsTerminal() bool {
	return s == StateClosed
}

// Lifecycle tracks one unit of work through its states. Not safe for
// concurrent use; a unit of work belongs to a single operation.
type Lifecycle struct {
	state    State
	history  []State
	observer func(from, to State)
}

func NewLifecycle(observer func(from, to State)) *Lifecycle {
	return &Lifecycle{
		state:    StateIdle,
		history:  []State{StateIdle},
		observer: observer,
	}
}

func (l *Lifecycle) State() State {
	return l.state
}

func (l *Lifecycle) History() []State {
	out := make([]State, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Lifecycle) Advance(next State) error {
	if !l.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.state, next)
	}
	from := l.state
	l.state = next
	l.history = append(l.history, next)
	if l.observer != nil {
		l.observer(from, next)
	}
	return nil
}

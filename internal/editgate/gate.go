// Package editgate implements the step-up challenge that separates viewing a
// dashboard section from editing it. Every mutating action funnels through a
// Gate: while locked, the action is withheld and a password challenge opens
// instead. A successful challenge only flips the gate to unlocked — it never
// replays the action that opened it; the caller must re-invoke.
package editgate

import "errors"

type State string

const (
	// Locked: edit mode is off. Mutations are withheld.
	Locked State = "locked"
	// Unlocking: a password challenge is open. Mutations are still withheld.
	Unlocking State = "unlocking"
	// Unlocked: edit mode is on. Mutations proceed.
	Unlocked State = "unlocked"
)

var (
	// ErrLocked reports that a mutation was withheld and a challenge opened.
	ErrLocked = errors.New("edit mode locked")
	// ErrInvalidPassword reports a failed challenge attempt. The challenge
	// stays open for retry or cancel.
	ErrInvalidPassword = errors.New("invalid password")
)

// VerifyFunc checks a challenge password. Non-nil return means the password
// was wrong.
type VerifyFunc func(password string) error

// Gate is the per-view, per-session edit-mode state machine. It is not safe
// for concurrent use; callers serialize access (the HTTP service keeps one
// gate per session/view pair behind a registry mutex).
type Gate struct {
	state  State
	verify VerifyFunc
}

func New(verify VerifyFunc) *Gate {
	return &Gate{state: Locked, verify: verify}
}

func (g *Gate) State() State {
	return g.state
}

// AttemptMutate is called before any create/update/delete. Unlocked lets the
// action proceed. Locked and Unlocking withhold it and leave a challenge
// open; exactly one challenge is open per attempt.
func (g *Gate) AttemptMutate() error {
	switch g.state {
	case Unlocked:
		return nil
	case Locked:
		g.state = Unlocking
		return ErrLocked
	default:
		return ErrLocked
	}
}

// SubmitPassword answers the challenge. A correct password unlocks the gate;
// the withheld action is not retried. A wrong password keeps the challenge
// open. Submitting against a locked gate opens and answers the challenge in
// one step, which is how the explicit "enter edit mode" affordance behaves.
func (g *Gate) SubmitPassword(password string) error {
	if g.state == Unlocked {
		return nil
	}
	if g.state == Locked {
		g.state = Unlocking
	}
	if err := g.verify(password); err != nil {
		return ErrInvalidPassword
	}
	g.state = Unlocked
	return nil
}

// Cancel abandons an open challenge.
func (g *Gate) Cancel() {
	if g.state == Unlocking {
		g.state = Locked
	}
}

// ToggleExit leaves edit mode. Explicit user action, no confirmation.
func (g *Gate) ToggleExit() {
	if g.state == Unlocked {
		g.state = Locked
	}
}

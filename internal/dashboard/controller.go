// Package dashboard is the client-side view model for the admin dashboard.
// One generic list controller per entity collection keeps a local copy of the
// remote list, funnels every mutation through an edit gate, and splices the
// local copy only after the remote store confirms.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/editgate"
)

// ErrConfirmDeclined reports that the user declined the delete confirmation.
// The remote store was not touched.
var ErrConfirmDeclined = errors.New("delete not confirmed")

const defaultCallTimeout = 10 * time.Second

// Identifiable is satisfied by every stored record type.
type Identifiable interface {
	EntityID() string
}

// Gateway is the remote side of a collection. Update sends the full record
// with its current revision and returns the confirmed result.
type Gateway[T Identifiable] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, item T) (T, error)
	Delete(ctx context.Context, id string) error
}

// ChallengeFunc collects the edit password when a locked gate withholds a
// mutation. Returning ok=false abandons the challenge.
type ChallengeFunc func(view string) (password string, ok bool)

// ConfirmFunc asks the user to confirm a delete. Deletes never proceed
// without it.
type ConfirmFunc func(id string) bool

// Controller keeps the local list for one collection. All methods are safe
// for concurrent use; the local list and the gate share one mutex.
type Controller[T Identifiable] struct {
	view      string
	gateway   Gateway[T]
	gate      *editgate.Gate
	challenge ChallengeFunc
	confirm   ConfirmFunc
	timeout   time.Duration

	mu      sync.Mutex
	items   []T
	loading bool
	lastErr string
}

type Option[T Identifiable] func(*Controller[T])

// WithChallenge installs the password prompt used when a mutation hits a
// locked gate.
func WithChallenge[T Identifiable](fn ChallengeFunc) Option[T] {
	return func(c *Controller[T]) { c.challenge = fn }
}

// WithConfirm installs the delete confirmation prompt.
func WithConfirm[T Identifiable](fn ConfirmFunc) Option[T] {
	return func(c *Controller[T]) { c.confirm = fn }
}

// WithTimeout overrides the per-call gateway timeout.
func WithTimeout[T Identifiable](d time.Duration) Option[T] {
	return func(c *Controller[T]) { c.timeout = d }
}

func NewController[T Identifiable](view string, gateway Gateway[T], gate *editgate.Gate, opts ...Option[T]) *Controller[T] {
	c := &Controller[T]{
		view:    view,
		gateway: gateway,
		gate:    gate,
		timeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Items returns a copy of the current local list.
func (c *Controller[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Controller[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the error message from the last failed refresh, empty after a
// successful one.
func (c *Controller[T]) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller[T]) GateState() editgate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.State()
}

// Refresh replaces the local list with the remote one. On failure the
// last-known-good list stays available and the error is kept for display.
func (c *Controller[T]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	items, err := c.gateway.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.lastErr = err.Error()
		return err
	}
	c.items = items
	c.lastErr = ""
	return nil
}

// Unlock enters edit mode explicitly. The gate's verify function decides
// whether the password is accepted.
func (c *Controller[T]) Unlock(password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.SubmitPassword(password)
}

// Lock leaves edit mode.
func (c *Controller[T]) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate.ToggleExit()
}

// Add creates the item remotely and prepends the confirmed record locally.
func (c *Controller[T]) Add(ctx context.Context, item T) (T, error) {
	var zero T
	if err := c.ensureUnlocked(); err != nil {
		return zero, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	created, err := c.gateway.Create(ctx, item)
	if err != nil {
		return zero, err
	}
	c.mu.Lock()
	c.items = append([]T{created}, c.items...)
	c.mu.Unlock()
	return created, nil
}

// Edit updates the item remotely and patches it into the local list by id.
func (c *Controller[T]) Edit(ctx context.Context, item T) (T, error) {
	var zero T
	if err := c.ensureUnlocked(); err != nil {
		return zero, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	updated, err := c.gateway.Update(ctx, item)
	if err != nil {
		return zero, err
	}
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].EntityID() == updated.EntityID() {
			c.items[i] = updated
			break
		}
	}
	c.mu.Unlock()
	return updated, nil
}

// Remove confirms, deletes remotely, then filters the record out locally.
func (c *Controller[T]) Remove(ctx context.Context, id string) error {
	if err := c.ensureUnlocked(); err != nil {
		return err
	}
	if c.confirm == nil || !c.confirm(id) {
		return ErrConfirmDeclined
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.gateway.Delete(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	kept := c.items[:0]
	for _, item := range c.items {
		if item.EntityID() != id {
			kept = append(kept, item)
		}
	}
	c.items = kept
	c.mu.Unlock()
	return nil
}

// ensureUnlocked runs the gate check in front of a mutation. A locked gate
// opens the challenge prompt; answering it correctly unlocks the gate but
// the withheld mutation still returns ErrLocked, so nothing is replayed and
// the caller re-invokes on purpose.
func (c *Controller[T]) ensureUnlocked() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.gate.AttemptMutate()
	if err == nil {
		return nil
	}
	if c.challenge == nil {
		return err
	}
	password, ok := c.challenge(c.view)
	if !ok {
		c.gate.Cancel()
		return err
	}
	if submitErr := c.gate.SubmitPassword(password); submitErr != nil {
		return submitErr
	}
	return err
}

package combat

import (
	"context"
	"sync"
)

// ActionKind identifies what a presented action shows.
type ActionKind int

const (
	ActionAttack  ActionKind = iota // an actor attacks a target
	ActionAbility                   // an actor's mask power activates
)

// String returns the human-readable name of the ActionKind.
func (k ActionKind) String() string {
	if k == ActionAbility {
		return "ability"
	}
	return "attack"
}

// Presenter plays the animation for one resolved action and returns once it has finished.
// The resolver waits for PlayAction before committing the action's effects.
type Presenter interface {
	PlayAction(ctx context.Context, actorID, targetID string, kind ActionKind) error
}

// PresenterFunc adapts a function to the Presenter interface.
type PresenterFunc func(ctx context.Context, actorID, targetID string, kind ActionKind) error

// PlayAction implements Presenter.
func (f PresenterFunc) PlayAction(ctx context.Context, actorID, targetID string, kind ActionKind) error {
	return f(ctx, actorID, targetID, kind)
}

// BindingPresenter dispatches to per-actor presenters. Actors without a binding
// complete immediately.
// It is safe for concurrent use.
type BindingPresenter struct {
	mu       sync.RWMutex
	bindings map[string]Presenter
}

// NewBindingPresenter creates an empty BindingPresenter.
func NewBindingPresenter() *BindingPresenter {
	return &BindingPresenter{bindings: make(map[string]Presenter)}
}

// Bind registers p for actorID, replacing any previous binding.
func (b *BindingPresenter) Bind(actorID string, p Presenter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings[actorID] = p
}

// Unbind removes the binding for actorID.
func (b *BindingPresenter) Unbind(actorID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bindings, actorID)
}

// Bound reports whether actorID has a binding.
func (b *BindingPresenter) Bound(actorID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.bindings[actorID]
	return ok
}

// PlayAction implements Presenter.
func (b *BindingPresenter) PlayAction(ctx context.Context, actorID, targetID string, kind ActionKind) error {
	b.mu.RLock()
	p, ok := b.bindings[actorID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	return p.PlayAction(ctx, actorID, targetID, kind)
}

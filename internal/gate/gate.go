// Package gate implements the two-stage authentication gate. Stage A (the
// boundary filter middleware) verifies the bearer credential and attaches an
// identity. Stage B runs right before dispatch to the executor and re-checks
// that identity, so entry points with public sub-paths still cannot reach
// table resolution unauthenticated. Each stage is independently testable.
package gate

import (
	"context"
	"fmt"

	"github.com/tablegate/tablegate/internal/model"
	"github.com/tablegate/tablegate/internal/pkg/apperrors"
)

// State of one request's passage through the gate. No state is revisited
// within a request.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateDispatched
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateDispatched:
		return "dispatched"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Passage tracks a single request through the gate's states. It is created
// by the boundary filter and carried on the request context; it is not safe
// for concurrent use, matching the one-goroutine-per-request model.
type Passage struct {
	state    State
	identity *model.Identity
}

func NewPassage() *Passage {
	return &Passage{state: StateUnauthenticated, identity: model.Anonymous()}
}

func (p *Passage) State() State { return p.state }

func (p *Passage) Identity() *model.Identity { return p.identity }

// Authenticate is Stage A: attach the verified identity. Valid only from
// the initial state.
func (p *Passage) Authenticate(id *model.Identity) error {
	if p.state != StateUnauthenticated {
		return fmt.Errorf("gate: authenticate from %s", p.state)
	}
	if id.IsAnonymous() {
		p.state = StateRejected
		return apperrors.NewAuthRequired("authentication required")
	}
	p.state = StateAuthenticated
	p.identity = id
	return nil
}

// Reject terminates the passage. Terminal.
func (p *Passage) Reject() {
	p.state = StateRejected
}

// Dispatch is Stage B: the final check before the executor. It re-verifies
// the attached identity is present, authenticated and not the anonymous
// placeholder; only then may table or column resolution begin.
func (p *Passage) Dispatch() error {
	if p.state != StateAuthenticated {
		p.state = StateRejected
		return apperrors.New(apperrors.ErrAccessDenied, "access denied", nil)
	}
	if p.identity.IsAnonymous() {
		p.state = StateRejected
		return apperrors.New(apperrors.ErrAccessDenied, "access denied", nil)
	}
	p.state = StateDispatched
	return nil
}

type contextKey struct{}

// WithPassage attaches a passage to the request context.
func WithPassage(ctx context.Context, p *Passage) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the passage attached by the boundary filter, if any.
func FromContext(ctx context.Context) (*Passage, bool) {
	p, ok := ctx.Value(contextKey{}).(*Passage)
	return p, ok
}

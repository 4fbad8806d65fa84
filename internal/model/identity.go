package model

// AnonymousActor is the placeholder actor attached when no credential was
// presented. The dispatch gate never lets it through to the executor.
const AnonymousActor = "anonymous"

// Identity is the verified caller attached to a request by the boundary
// filter. The gateway never sees the raw credential, only this result.
type Identity struct {
	Actor         string `json:"actor"`
	UserID        uint   `json:"user_id,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// Anonymous returns the placeholder identity for unauthenticated traffic.
func Anonymous() *Identity {
	return &Identity{Actor: AnonymousActor}
}

// IsAnonymous reports whether the identity is absent, unverified, or the
// anonymous placeholder.
func (id *Identity) IsAnonymous() bool {
	return id == nil || !id.Authenticated || id.Actor == "" || id.Actor == AnonymousActor
}

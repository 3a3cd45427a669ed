package domain

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageRequest is a normalised keyset page: at most Limit rows after Cursor (an entity ID).
type PageRequest struct {
	Limit  int
	Cursor string
}

// Normalize clamps Limit into [1, MaxPageLimit].
func (p PageRequest) Normalize() PageRequest {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

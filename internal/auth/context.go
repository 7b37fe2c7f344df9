// Package auth models the authorization oracle: every ledger operation
// receives a Context holding the set of identities that authorized the call.
// The ledger core only ever asks "is this operation authorized by X?", so it
// stays pure and unit-testable without any signing infrastructure.
package auth

import "shared-asset-ledger/internal/domain"

// Context is the set of identities that authorized the current operation.
// The zero value authorizes nobody.
type Context struct {
	ids map[domain.Identity]struct{}
}

// NewContext creates a Context authorizing exactly the given identities.
func NewContext(ids ...domain.Identity) Context {
	set := make(map[domain.Identity]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Context{ids: set}
}

// Authorized reports whether the operation was authorized by id.
func (c Context) Authorized(id domain.Identity) bool {
	_, ok := c.ids[id]
	return ok
}

// Identities returns the authorizing identities in unspecified order.
func (c Context) Identities() []domain.Identity {
	result := make([]domain.Identity, 0, len(c.ids))
	for id := range c.ids {
		result = append(result, id)
	}
	return result
}

// Package domain contains core concepts of the chat system.
// This file defines Identity values and the static whitelist invariant.
// No runtime, network, or UI logic should be added here.
package domain

import "github.com/samber/lo"

// Identity is one member of the small closed set of permitted participants.
type Identity string

func (i Identity) String() string {
	return string(i)
}

// Whitelist is the static enumerated set of identities allowed to bind a
// session. Pure lookup, no state.
type Whitelist struct {
	members map[Identity]struct{}
}

func NewWhitelist(identities []Identity) Whitelist {
	return Whitelist{
		members: lo.SliceToMap(identities, func(id Identity) (Identity, struct{}) {
			return id, struct{}{}
		}),
	}
}

func (w Whitelist) Contains(id Identity) bool {
	_, ok := w.members[id]
	return ok
}

// Members returns the whitelisted identities in no particular order.
func (w Whitelist) Members() []Identity {
	return lo.Keys(w.members)
}

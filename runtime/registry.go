package runtime

import (
	"sync"

	"github.com/samber/lo"

	"duochat/contract"
	"duochat/domain"
)

// Registry owns the connection-to-identity bindings. It is the only holder
// of this state; everything else goes through the narrow interface.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[contract.ConnID]domain.Identity
	whitelist domain.Whitelist
}

func NewRegistry(whitelist domain.Whitelist) *Registry {
	return &Registry{
		sessions:  make(map[contract.ConnID]domain.Identity),
		whitelist: whitelist,
	}
}

// Register binds a connection to its verified identity. The binding is
// immutable until Unregister; the handshake path ignores re-joins on a
// bound connection, so a second Register for the same connection never
// happens.
func (r *Registry) Register(conn contract.ConnID, identity domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[conn] = identity
}

// Unregister drops the binding for a connection. Unknown connections are a
// no-op so the disconnect path needs no pre-check.
func (r *Registry) Unregister(conn contract.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, conn)
}

// IdentityOf resolves the identity bound to a connection, if any.
func (r *Registry) IdentityOf(conn contract.ConnID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.sessions[conn]
	return identity, ok
}

// OnlineIdentities computes the presence view. Bindings are filtered against
// the whitelist even though only whitelisted identities are ever registered,
// and de-duplicated so an identity connected twice is listed once.
func (r *Registry) OnlineIdentities() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identities := lo.Filter(lo.Values(r.sessions), func(id domain.Identity, _ int) bool {
		return r.whitelist.Contains(id)
	})
	return lo.Uniq(identities)
}

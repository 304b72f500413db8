package services

import (
	stderrors "errors"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"

	"duochat/auth"
	"duochat/contract"
	"duochat/domain"
	"duochat/errors"
	"duochat/observability"
	"duochat/projection"
	"duochat/repositories"
)

type IChatService interface {
	HandleJoin(conn contract.ConnID, identity, token string)
	HandleMessage(conn contract.ConnID, body string, replyTo *domain.ReplySnapshot)
	HandleToggleReaction(conn contract.ConnID, messageID int64, emoji string)
	HandleTyping(conn contract.ConnID)
	HandleStopTyping(conn contract.ConnID)
	HandleDisconnect(conn contract.ConnID)
}

// ChatService orchestrates the handshake, the message flow, and the
// presence/reaction mutations between the event bus and the store.
type ChatService struct {
	bus             contract.EventBus
	registry        contract.ISessionRegistry
	repository      repositories.IMessageRepository
	timeline        *projection.Timeline
	whitelist       domain.Whitelist
	monitoring      *observability.Manager
	log             *slog.Logger
	allowLegacyJoin bool
}

func NewChatService(
	bus contract.EventBus,
	registry contract.ISessionRegistry,
	repository repositories.IMessageRepository,
	timeline *projection.Timeline,
	whitelist domain.Whitelist,
	monitoring *observability.Manager,
	log *slog.Logger,
	allowLegacyJoin bool,
) *ChatService {
	return &ChatService{
		bus:             bus,
		registry:        registry,
		repository:      repository,
		timeline:        timeline,
		whitelist:       whitelist,
		monitoring:      monitoring,
		log:             log,
		allowLegacyJoin: allowLegacyJoin,
	}
}

// PostResult distinguishes a durably stored message from one delivered on
// the degraded path. An unpersisted view carries a locally generated
// timestamp and no id.
type PostResult struct {
	View      domain.MessageView
	Persisted bool
}

// HandleJoin runs the handshake: token check, whitelist check, binding,
// presence publication, backlog delivery. A failed check notifies the
// connection and force-closes it; unauthenticated connections never reach
// the registry or the store. The binding is set once: a second join on an
// already bound connection is ignored, it can never rebind the identity.
func (s *ChatService) HandleJoin(conn contract.ConnID, identity, token string) {
	if bound, ok := s.registry.IdentityOf(conn); ok {
		s.log.Debug("Ignoring join on bound connection", "conn", conn, "identity", bound)
		return
	}

	id := domain.Identity(identity)

	if err := s.authorize(token); err != nil {
		s.reject(conn, err)
		return
	}
	if !s.whitelist.Contains(id) {
		s.reject(conn, errors.ErrIdentityNotAllowed)
		return
	}

	s.registry.Register(conn, id)
	s.log.Info("Identity joined", "identity", id, "conn", conn)

	s.publishPresence()
	s.bus.EmitTo(conn, contract.EventHistory, s.timeline.Rebuild())
}

// authorize verifies the session token. When legacy joins are enabled an
// absent token passes; the whitelist check still applies afterwards.
func (s *ChatService) authorize(token string) error {
	if token == "" {
		if s.allowLegacyJoin {
			return nil
		}
		return errors.ErrTokenMissing
	}
	if _, err := auth.ValidateToken(token); err != nil {
		return errors.ErrTokenInvalid
	}
	return nil
}

func (s *ChatService) reject(conn contract.ConnID, err error) {
	s.log.Warn("Rejecting connection", "conn", conn, "reason", err)
	s.bus.EmitTo(conn, contract.EventAuthError, map[string]string{"message": err.Error()})
	s.bus.Close(conn)
}

// HandleMessage persists and broadcasts a chat message. The sender is the
// session-bound identity, never a client-supplied field. Validation
// failures drop the event silently; a persistence failure still broadcasts
// with a fallback timestamp and no id (liveness over durability).
func (s *ChatService) HandleMessage(conn contract.ConnID, body string, replyTo *domain.ReplySnapshot) {
	sender, ok := s.registry.IdentityOf(conn)
	if !ok {
		s.log.Debug("Dropping message from unbound connection", "conn", conn)
		return
	}
	if body == "" {
		s.log.Debug("Dropping empty message", "sender", sender)
		return
	}

	// The snapshot is only kept when the referenced triple is complete;
	// a partial reference yields a plain message, not a dangling pointer.
	var reply *domain.ReplySnapshot
	if replyTo != nil && replyTo.Valid() {
		reply = replyTo
	}

	result := s.post(sender, body, reply)
	s.bus.EmitAll(contract.EventChatMessage, result.View)
}

func (s *ChatService) post(sender domain.Identity, body string, reply *domain.ReplySnapshot) PostResult {
	s.monitoring.IncrMessagesPosted()

	stored, err := s.repository.StoreMessage(sender, body, reply)
	if err != nil {
		s.monitoring.IncrPersistFailures()
		s.log.Error("Persist failed, broadcasting unpersisted message", "sender", sender, "err", err)
		return PostResult{
			Persisted: false,
			View: domain.MessageView{
				Sender:    sender.String(),
				Message:   body,
				Timestamp: time.Now().UTC(),
				ReplyTo:   reply,
				Reactions: []domain.Reaction{},
			},
		}
	}
	return PostResult{Persisted: true, View: domain.ViewOf(stored)}
}

// HandleToggleReaction flips the (identity, emoji) pair on a message and
// broadcasts the updated set. The reacting user is the bound identity;
// the client-supplied user field is ignored.
func (s *ChatService) HandleToggleReaction(conn contract.ConnID, messageID int64, emoji string) {
	identity, ok := s.registry.IdentityOf(conn)
	if !ok {
		s.log.Debug("Dropping reaction from unbound connection", "conn", conn)
		return
	}
	if emoji == "" {
		return
	}

	reactions, err := s.repository.ToggleReaction(messageID, identity.String(), emoji)
	if stderrors.Is(err, errors.ErrMessageNotFound) {
		s.log.Debug("Reaction on unknown message", "messageId", messageID)
		return
	}
	if err != nil {
		s.log.Error("Reaction toggle failed", "messageId", messageID, "err", err)
		return
	}

	s.monitoring.IncrReactionsToggled()
	s.bus.EmitAll(contract.EventReactionUpdated, domain.ReactionUpdate{
		MessageID: messageID,
		Reactions: reactions,
	})
}

// HandleTyping relays a transient typing notice to everyone but the sender.
func (s *ChatService) HandleTyping(conn contract.ConnID) {
	s.relayTyping(conn, contract.EventTyping)
}

func (s *ChatService) HandleStopTyping(conn contract.ConnID) {
	s.relayTyping(conn, contract.EventStopTyping)
}

func (s *ChatService) relayTyping(conn contract.ConnID, event string) {
	identity, ok := s.registry.IdentityOf(conn)
	if !ok {
		return
	}
	s.bus.EmitAllExcept(conn, event, domain.TypingNotice{Sender: identity.String()})
}

// HandleDisconnect drops the binding and republishes presence. Safe for
// connections that never completed the handshake.
func (s *ChatService) HandleDisconnect(conn contract.ConnID) {
	s.registry.Unregister(conn)
	s.publishPresence()
}

func (s *ChatService) publishPresence() {
	online := lo.Map(s.registry.OnlineIdentities(), func(id domain.Identity, _ int) string {
		return id.String()
	})
	sort.Strings(online)
	s.bus.EmitAll(contract.EventOnlineUsers, online)
}

package services

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"duochat/auth"
	"duochat/contract"
	"duochat/domain"
	"duochat/errors"
	"duochat/mocks"
	"duochat/observability"
	"duochat/projection"
)

type chatFixture struct {
	bus      *mocks.MockEventBus
	registry *mocks.MockISessionRegistry
	repo     *mocks.MockIMessageRepository
	svc      *ChatService
}

func newChatFixture(t *testing.T, allowLegacyJoin bool) chatFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	bus := mocks.NewMockEventBus(ctrl)
	registry := mocks.NewMockISessionRegistry(ctrl)
	repo := mocks.NewMockIMessageRepository(ctrl)

	whitelist := domain.NewWhitelist([]domain.Identity{"ael", "noa"})
	timeline := projection.NewTimeline(repo, slog.Default())
	svc := NewChatService(bus, registry, repo, timeline, whitelist, observability.NewManager(), slog.Default(), allowLegacyJoin)

	return chatFixture{bus: bus, registry: registry, repo: repo, svc: svc}
}

func validToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(time.Hour)
	require.NoError(t, err)
	return token
}

func TestHandleJoin_BindsAndSendsBacklog(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity(""), false).Times(1)
	f.registry.EXPECT().Register(conn, domain.Identity("ael")).Times(1)
	f.registry.EXPECT().OnlineIdentities().Return([]domain.Identity{"ael"}).Times(1)
	f.repo.EXPECT().GetAllMessages().Return(nil, nil).Times(1)

	var presence []string
	f.bus.EXPECT().
		EmitAll(contract.EventOnlineUsers, gomock.Any()).
		Do(func(_ string, payload any) {
			presence = payload.([]string)
		}).
		Times(1)

	var backlog []domain.MessageView
	f.bus.EXPECT().
		EmitTo(conn, contract.EventHistory, gomock.Any()).
		Do(func(_ contract.ConnID, _ string, payload any) {
			backlog = payload.([]domain.MessageView)
		}).
		Times(1)

	f.svc.HandleJoin(conn, "ael", validToken(t))

	req.Equal([]string{"ael"}, presence)
	req.NotNil(backlog)
	req.Empty(backlog)
}

func TestHandleJoin_RejectsMissingToken(t *testing.T) {
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity(""), false).Times(1)
	f.bus.EXPECT().EmitTo(conn, contract.EventAuthError, gomock.Any()).Times(1)
	f.bus.EXPECT().Close(conn).Times(1)
	// The registry and the store must never see an unauthenticated connection.
	f.registry.EXPECT().Register(gomock.Any(), gomock.Any()).Times(0)

	f.svc.HandleJoin(conn, "ael", "")
}

func TestHandleJoin_RejectsTamperedToken(t *testing.T) {
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity(""), false).Times(1)
	f.bus.EXPECT().EmitTo(conn, contract.EventAuthError, gomock.Any()).Times(1)
	f.bus.EXPECT().Close(conn).Times(1)

	f.svc.HandleJoin(conn, "ael", validToken(t)+"x")
}

func TestHandleJoin_RejectsNonWhitelistedIdentity(t *testing.T) {
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity(""), false).Times(1)
	// Token is perfectly valid; the identity is not.
	f.bus.EXPECT().EmitTo(conn, contract.EventAuthError, gomock.Any()).Times(1)
	f.bus.EXPECT().Close(conn).Times(1)
	f.registry.EXPECT().Register(gomock.Any(), gomock.Any()).Times(0)

	f.svc.HandleJoin(conn, "intruder", validToken(t))
}

func TestHandleJoin_LegacyJoinWithoutToken(t *testing.T) {
	f := newChatFixture(t, true)
	conn := contract.ConnID("conn-1")

	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity(""), false).Times(1)
	f.registry.EXPECT().Register(conn, domain.Identity("noa")).Times(1)
	f.registry.EXPECT().OnlineIdentities().Return([]domain.Identity{"noa"}).Times(1)
	f.repo.EXPECT().GetAllMessages().Return(nil, nil).Times(1)
	f.bus.EXPECT().EmitAll(contract.EventOnlineUsers, gomock.Any()).Times(1)
	f.bus.EXPECT().EmitTo(conn, contract.EventHistory, gomock.Any()).Times(1)

	f.svc.HandleJoin(conn, "noa", "")
}

func TestHandleMessage_BroadcastsPersistedView(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")
	now := time.Now().UTC()

	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity("ael"), true).Times(1)
	f.repo.EXPECT().
		StoreMessage(domain.Identity("ael"), "hi", nil).
		Return(domain.Message{ID: 1, Sender: "ael", Body: "hi", CreatedAt: now, Reactions: []domain.Reaction{}}, nil).
		Times(1)

	var view domain.MessageView
	f.bus.EXPECT().
		EmitAll(contract.EventChatMessage, gomock.Any()).
		Do(func(_ string, payload any) {
			view = payload.(domain.MessageView)
		}).
		Times(1)

	f.svc.HandleMessage(conn, "hi", nil)

	req.Equal(int64(1), view.ID)
	req.Equal("ael", view.Sender)
	req.Equal("hi", view.Message)
	req.Equal(now, view.Timestamp)
	req.Nil(view.ReplyTo)
	req.Equal([]domain.Reaction{}, view.Reactions)
}

func TestHandleMessage_SenderIsSessionBound(t *testing.T) {
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	// Whatever the client claims, the stored sender is the bound identity.
	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity("noa"), true).Times(1)
	f.repo.EXPECT().
		StoreMessage(domain.Identity("noa"), "hello", gomock.Any()).
		Return(domain.Message{ID: 2, Sender: "noa", Body: "hello"}, nil).
		Times(1)
	f.bus.EXPECT().EmitAll(contract.EventChatMessage, gomock.Any()).Times(1)

	f.svc.HandleMessage(conn, "hello", nil)
}

func TestHandleMessage_DropsInvalidEvents(t *testing.T) {
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	// Unbound connection: silently dropped, nothing reaches the store or bus.
	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity(""), false).Times(1)
	f.svc.HandleMessage(conn, "hi", nil)

	// Empty body: same.
	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity("ael"), true).Times(1)
	f.svc.HandleMessage(conn, "", nil)
}

func TestHandleMessage_FailOpenOnPersistError(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity("ael"), true).Times(1)
	f.repo.EXPECT().
		StoreMessage(domain.Identity("ael"), "hi", nil).
		Return(domain.Message{}, fmt.Errorf("disk full")).
		Times(1)

	var view domain.MessageView
	f.bus.EXPECT().
		EmitAll(contract.EventChatMessage, gomock.Any()).
		Do(func(_ string, payload any) {
			view = payload.(domain.MessageView)
		}).
		Times(1)

	f.svc.HandleMessage(conn, "hi", nil)

	// Delivered live, but detectably unpersisted: no id, local timestamp.
	req.Zero(view.ID)
	req.Equal("hi", view.Message)
	req.False(view.Timestamp.IsZero())
}

func TestHandleMessage_DiscardsPartialReplyReference(t *testing.T) {
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity("ael"), true).Times(1)
	// A snapshot missing its text is not stored as a reply at all.
	f.repo.EXPECT().
		StoreMessage(domain.Identity("ael"), "hi", nil).
		Return(domain.Message{ID: 3, Sender: "ael", Body: "hi"}, nil).
		Times(1)
	f.bus.EXPECT().EmitAll(contract.EventChatMessage, gomock.Any()).Times(1)

	f.svc.HandleMessage(conn, "hi", &domain.ReplySnapshot{ID: 1, Sender: "noa"})
}

func TestHandleToggleReaction_BroadcastsUpdatedSet(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity("ael"), true).Times(1)
	f.repo.EXPECT().
		ToggleReaction(int64(1), "ael", "👍").
		Return([]domain.Reaction{{User: "ael", Emoji: "👍"}}, nil).
		Times(1)

	var update domain.ReactionUpdate
	f.bus.EXPECT().
		EmitAll(contract.EventReactionUpdated, gomock.Any()).
		Do(func(_ string, payload any) {
			update = payload.(domain.ReactionUpdate)
		}).
		Times(1)

	f.svc.HandleToggleReaction(conn, 1, "👍")

	req.Equal(int64(1), update.MessageID)
	req.Equal([]domain.Reaction{{User: "ael", Emoji: "👍"}}, update.Reactions)
}

func TestHandleToggleReaction_UnknownMessageIsDropped(t *testing.T) {
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity("ael"), true).Times(1)
	f.repo.EXPECT().
		ToggleReaction(int64(99), "ael", "👍").
		Return(nil, errors.ErrMessageNotFound).
		Times(1)

	f.svc.HandleToggleReaction(conn, 99, "👍")
}

func TestHandleTyping_RelaysToOthersOnly(t *testing.T) {
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity("ael"), true).Times(2)
	f.bus.EXPECT().EmitAllExcept(conn, contract.EventTyping, domain.TypingNotice{Sender: "ael"}).Times(1)
	f.bus.EXPECT().EmitAllExcept(conn, contract.EventStopTyping, domain.TypingNotice{Sender: "ael"}).Times(1)

	f.svc.HandleTyping(conn)
	f.svc.HandleStopTyping(conn)
}

func TestHandleDisconnect_PublishesPresence(t *testing.T) {
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	f.registry.EXPECT().Unregister(conn).Times(1)
	f.registry.EXPECT().OnlineIdentities().Return(nil).Times(1)
	f.bus.EXPECT().EmitAll(contract.EventOnlineUsers, gomock.Any()).Times(1)

	f.svc.HandleDisconnect(conn)
}

func TestHandleJoin_IgnoresRejoinOnBoundConnection(t *testing.T) {
	f := newChatFixture(t, false)
	conn := contract.ConnID("conn-1")

	// The binding is set once: a later join never rebinds the connection,
	// even with a valid token and a whitelisted identity.
	f.registry.EXPECT().IdentityOf(conn).Return(domain.Identity("ael"), true).Times(1)
	f.registry.EXPECT().Register(gomock.Any(), gomock.Any()).Times(0)

	f.svc.HandleJoin(conn, "noa", validToken(t))
}

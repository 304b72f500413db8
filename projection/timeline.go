// Package projection rebuilds client-facing views from stored state.
// It reshapes rows into wire representations and never emits events itself.
package projection

import (
	"log/slog"
	"sort"

	"github.com/samber/lo"

	"duochat/domain"
	"duochat/repositories"
)

// Timeline reconstructs the message backlog sent to a newly authenticated
// connection.
type Timeline struct {
	repository repositories.IMessageRepository
	log        *slog.Logger
}

func NewTimeline(repository repositories.IMessageRepository, log *slog.Logger) *Timeline {
	return &Timeline{repository: repository, log: log}
}

// Rebuild fetches the whole log and reshapes it into wire views, oldest
// first. Any storage error yields an empty backlog instead of propagating:
// a reconnect must never be blocked by a history failure.
func (t *Timeline) Rebuild() []domain.MessageView {
	messages, err := t.repository.GetAllMessages()
	if err != nil {
		t.log.Error("History fetch failed, sending empty backlog", "err", err)
		return []domain.MessageView{}
	}

	// The store hands rows back in key order; re-sorting by id keeps the
	// contract independent of the iteration direction.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ID < messages[j].ID
	})

	return lo.Map(messages, func(message domain.Message, _ int) domain.MessageView {
		return domain.ViewOf(message)
	})
}

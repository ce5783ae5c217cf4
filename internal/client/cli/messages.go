package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/dmitrijs2005/chatmesh/internal/client/models"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
)

// onMessage handles envelopes the server pushes: chats are printed and
// stored, anything else is logged.
func (a *App) onMessage(env protocol.Envelope) {
	ctx := context.Background()

	switch m := env.(type) {
	case protocol.OneChat:
		printlnFn(formatChat(m))
		a.save(ctx, &models.HistoryEntry{
			Kind: models.KindChat, Peer: m.ID, FromID: m.ID, FromName: m.Name,
			Msg: m.Msg, SentAt: m.Time,
		})
	case protocol.GroupChat:
		printlnFn(formatGroupChat(m))
		a.save(ctx, &models.HistoryEntry{
			Kind: models.KindGroup, Peer: m.GroupID, FromID: m.ID, FromName: m.Name,
			Msg: m.Msg, SentAt: m.Time,
		})
	default:
		log.Printf("unexpected %s message from server", env.Kind())
	}
}

func (a *App) save(ctx context.Context, e *models.HistoryEntry) {
	if a.history == nil {
		return
	}
	if _, err := a.history.Add(ctx, e); err != nil {
		log.Printf("Failed to store message: %s", err.Error())
	}
}

func formatChat(m protocol.OneChat) string {
	return fmt.Sprintf("%s [%d] %s said: %s", m.Time, m.ID, m.Name, m.Msg)
}

func formatGroupChat(m protocol.GroupChat) string {
	return fmt.Sprintf("group [%d]: %s [%d] %s said: %s", m.GroupID, m.Time, m.ID, m.Name, m.Msg)
}

func formatEntry(e models.HistoryEntry) string {
	var to string
	switch {
	case e.Kind == models.KindGroup:
		to = fmt.Sprintf("group [%d] ", e.Peer)
	case e.Outgoing:
		to = fmt.Sprintf("to [%d] ", e.Peer)
	}
	return fmt.Sprintf("%s%s [%d] %s said: %s", to, e.SentAt, e.FromID, e.FromName, e.Msg)
}

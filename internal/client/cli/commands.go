package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/chatmesh/internal/client/client"
	"github.com/dmitrijs2005/chatmesh/internal/client/models"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
)

// errUsage is returned when a command's arguments cannot be parsed. The
// REPL answers it with the command's usage line.
var errUsage = errors.New("invalid command arguments")

const historyLimit = 20

// parseID reads a numeric id, ignoring surrounding blanks.
func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, errUsage
	}
	return id, nil
}

// parseIDAndText splits "<id>:<text>". The text may itself contain colons.
func parseIDAndText(args string) (int, string, error) {
	idText, text, ok := strings.Cut(args, ":")
	if !ok || text == "" {
		return 0, "", errUsage
	}
	id, err := parseID(idText)
	if err != nil {
		return 0, "", err
	}
	return id, text, nil
}

func (a *App) send(ctx context.Context, env protocol.Envelope) error {
	if err := a.client.Send(ctx, env); err != nil {
		log.Printf("Failed to send %s: %s", env.Kind(), err.Error())
		return err
	}
	return nil
}

// Chat sends a direct message, args being "<friend id>:<message>".
func (a *App) Chat(ctx context.Context, args string) error {
	to, text, err := parseIDAndText(args)
	if err != nil {
		return err
	}

	u := a.currentUser()
	if to == u.ID {
		printlnFn("You cannot chat with yourself.")
		return errUsage
	}

	msg := protocol.OneChat{ID: u.ID, Name: u.Name, To: to, Msg: text, Time: client.Now()}
	if err := a.send(ctx, msg); err != nil {
		return err
	}

	a.save(ctx, &models.HistoryEntry{
		Kind: models.KindChat, Peer: to, FromID: u.ID, FromName: u.Name,
		Msg: text, SentAt: msg.Time, Outgoing: true,
	})
	return nil
}

func (a *App) AddFriend(ctx context.Context, args string) error {
	friendID, err := parseID(args)
	if err != nil {
		return err
	}
	return a.send(ctx, protocol.AddFriend{ID: a.currentUser().ID, FriendID: friendID})
}

// CreateGroup creates a group from "<name>:<description>". The creator
// joins it straight away.
func (a *App) CreateGroup(ctx context.Context, args string) error {
	name, desc, _ := strings.Cut(args, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return errUsage
	}
	return a.send(ctx, protocol.CreateGroup{ID: a.currentUser().ID, GroupName: name, GroupDesc: desc})
}

func (a *App) AddGroup(ctx context.Context, args string) error {
	groupID, err := parseID(args)
	if err != nil {
		return err
	}
	return a.send(ctx, protocol.AddGroup{ID: a.currentUser().ID, GroupID: groupID})
}

// GroupChat sends a message to every other member, args being
// "<group id>:<message>".
func (a *App) GroupChat(ctx context.Context, args string) error {
	groupID, text, err := parseIDAndText(args)
	if err != nil {
		return err
	}

	u := a.currentUser()
	msg := protocol.GroupChat{ID: u.ID, Name: u.Name, GroupID: groupID, Msg: text, Time: client.Now()}
	if err := a.send(ctx, msg); err != nil {
		return err
	}

	a.save(ctx, &models.HistoryEntry{
		Kind: models.KindGroup, Peer: groupID, FromID: u.ID, FromName: u.Name,
		Msg: text, SentAt: msg.Time, Outgoing: true,
	})
	return nil
}

// History prints stored messages. With no args it shows the latest lines of
// every conversation, "<id>" narrows to one user and "g<id>" to one group.
func (a *App) History(ctx context.Context, args string) error {
	kind, peer := "", 0
	if args = strings.TrimSpace(args); args != "" {
		kind = models.KindChat
		if rest, ok := strings.CutPrefix(args, "g"); ok {
			kind, args = models.KindGroup, rest
		}
		id, err := parseID(args)
		if err != nil {
			return err
		}
		peer = id
	}

	entries, err := a.history.List(ctx, kind, peer, historyLimit)
	if err != nil {
		log.Printf("Failed to read history: %s", err.Error())
		return err
	}
	if len(entries) == 0 {
		printlnFn("No messages yet.")
		return nil
	}
	for _, e := range entries {
		printlnFn(formatEntry(e))
	}
	return nil
}

// Show prints the logged in user with the friends and groups received at
// login.
func (a *App) Show(_ context.Context) error {
	u := a.currentUser()

	printlnFn("======================login user======================")
	printlnFn(fmt.Sprintf("current login user => id:%d name:%s", u.ID, u.Name))
	printlnFn("----------------------friend list---------------------")
	for _, f := range u.Friends {
		printlnFn(fmt.Sprintf("%d %s %s", f.ID, f.Name, f.State))
	}
	printlnFn("----------------------group list----------------------")
	for _, g := range u.Groups {
		printlnFn(fmt.Sprintf("%d %s %s", g.ID, g.GroupName, g.GroupDesc))
		for _, m := range g.Users {
			printlnFn(fmt.Sprintf("\t%d %s %s %s", m.ID, m.Name, m.State, m.Role))
		}
	}
	printlnFn("======================================================")
	return nil
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Chat(ctx context.Context, args string) error
	AddFriend(ctx context.Context, args string) error
	CreateGroup(ctx context.Context, args string) error
	AddGroup(ctx context.Context, args string) error
	GroupChat(ctx context.Context, args string) error
	History(ctx context.Context, args string) error
	Show(ctx context.Context) error
}

var usage = map[string]string{
	"chat":        "chat:<friend id>:<message>",
	"addfriend":   "addfriend:<friend id>",
	"creategroup": "creategroup:<name>:<description>",
	"addgroup":    "addgroup:<group id>",
	"groupchat":   "groupchat:<group id>:<message>",
	"history":     "history[:<friend id>|:g<group id>]",
	"login":       "login, then enter a numeric user id",
	"register":    "register, then enter a non-empty user name",
}

const (
	menuHelp = "1.login  2.register  3.quit"
	chatHelp = "Available commands: help, chat, addfriend, creategroup, addgroup, groupchat, history, show, loginout, quit"
)

// runREPL reads one command per line and dispatches it to a. A command is
// a name optionally followed by ':' and arguments, e.g. "chat:2:hello".
//
// Before login the menu accepts login, register and quit (or 1, 2, 3).
// After login it accepts the chat commands listed by help. The loop ends on
// quit, at the end of input or once ctx is cancelled.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("chat %s> ", statusFn()))

		line, readErr := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			if readErr != nil {
				return
			}
			continue
		}

		cmd, args, _ := strings.Cut(line, ":")
		cmd = strings.TrimSpace(cmd)

		var err error
		if a.isLoggedIn() {
			switch cmd {
			case "help":
				printlnFn(chatHelp)
			case "chat":
				err = a.Chat(ctx, args)
			case "addfriend":
				err = a.AddFriend(ctx, args)
			case "creategroup":
				err = a.CreateGroup(ctx, args)
			case "addgroup":
				err = a.AddGroup(ctx, args)
			case "groupchat":
				err = a.GroupChat(ctx, args)
			case "history":
				err = a.History(ctx, args)
			case "show":
				err = a.Show(ctx)
			case "loginout", "logout":
				err = a.Logout(ctx)
			case "exit", "quit":
				printlnFn("Bye!")
				return
			default:
				printlnFn("Unknown command:", cmd)
			}
		} else {
			switch cmd {
			case "help":
				printlnFn(menuHelp)
			case "1", "login":
				cmd = "login"
				err = a.Login(ctx)
			case "2", "register":
				cmd = "register"
				err = a.Register(ctx)
			case "3", "exit", "quit":
				printlnFn("Bye!")
				return
			default:
				printlnFn("Please login first:", menuHelp)
			}
		}

		if errors.Is(err, errUsage) {
			printlnFn("Usage:", usage[cmd])
		}

		if readErr != nil {
			return
		}
	}
}

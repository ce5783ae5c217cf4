package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dmitrijs2005/chatmesh/internal/cryptox"
	"github.com/dmitrijs2005/chatmesh/internal/protocol"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var (
	errLoginFailed    = errors.New("login failed")
	errRegisterFailed = errors.New("register failed")
)

// Register asks for a user name and password and creates an account. The
// server assigns the id the user logs in with.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter user name", os.Stdout)
	if err != nil {
		return err
	}
	if name == "" {
		return errUsage
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	ack, err := a.client.Register(ctx, name, string(password))
	if err != nil {
		log.Printf("Register unsuccessful: %s", err.Error())
		return err
	}
	if ack.Errno != protocol.ErrnoOK {
		printlnFn("Name is already taken, register error!")
		return errRegisterFailed
	}

	printlnFn(fmt.Sprintf("Registered, your user id is %d. Do not forget it!", ack.ID))
	return nil
}

// Login asks for a user id and password. On success it keeps the friends
// and groups snapshot, prints it and replays the messages queued while the
// user was offline.
func (a *App) Login(ctx context.Context) error {
	idText, err := getSimpleText(a.reader, "Enter user id", os.Stdout)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(idText)
	if err != nil {
		return errUsage
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(password)

	reqCtx, cancel := a.withTimeout(ctx)
	defer cancel()

	ack, err := a.client.Login(reqCtx, id, string(password))
	if err != nil {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}
	if ack.Errno != protocol.ErrnoOK {
		printlnFn("Login failed:", ack.Errmsg)
		return errLoginFailed
	}

	a.setUser(ack)
	printlnFn("Login successful")
	_ = a.Show(ctx)

	for _, raw := range ack.OfflineMsg {
		env, err := protocol.Unmarshal([]byte(raw))
		if err != nil {
			log.Printf("skipping stored message: %s", err.Error())
			continue
		}
		a.onMessage(env)
	}
	return nil
}

// Logout tells the server the user is leaving and forgets the session
// locally. The connection stays open for the next login.
func (a *App) Logout(ctx context.Context) error {
	u := a.currentUser()
	if u.ID == 0 {
		return nil
	}
	a.setUser(protocol.LoginAck{})

	if err := a.client.Send(ctx, protocol.Logout{ID: u.ID}); err != nil {
		log.Printf("Logout unsuccessful: %s", err.Error())
		return err
	}
	return nil
}

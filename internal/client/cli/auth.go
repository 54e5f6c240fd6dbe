package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/diagrams/internal/client/api"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	u, err := a.api.Register(ctx, userName, email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (id %d). You can login now.\n", u.Username, u.ID)
	return nil
}

// Login asks for credentials, obtains a token and persists it.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	tok, err := a.api.Login(ctx, userName, password)
	if err != nil {
		return err
	}
	if err := a.store.Save(tok.AccessToken); err != nil {
		return fmt.Errorf("token not saved: %w", err)
	}

	a.userName = userName
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Logout revokes the token on the server and forgets it locally. A token
// the server already rejects is forgotten as well.
func (a *App) Logout(ctx context.Context) error {
	err := a.api.Logout(ctx)
	if err != nil && !errors.Is(err, api.ErrUnauthorized) {
		return err
	}
	return a.forgetSession()
}

func (a *App) Me(ctx context.Context) error {
	u, err := a.api.Me(ctx)
	if err != nil {
		return err
	}
	a.userName = u.Username
	fmt.Fprintf(a.out, "id: %d\nusername: %s\nemail: %s\n", u.ID, u.Username, u.Email)
	return nil
}

func (a *App) Unregister(ctx context.Context) error {
	answer, err := getSimpleText(a.reader, "Delete your account and all diagrams? (yes/no)", a.out)
	if err != nil {
		return err
	}
	if answer != "yes" {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}

	if err := a.api.DeleteAccount(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account deleted")
	return a.forgetSession()
}

func (a *App) forgetSession() error {
	a.api.SetToken("")
	a.userName = ""
	return a.store.Clear()
}

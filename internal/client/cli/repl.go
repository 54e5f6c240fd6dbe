package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/diagrams/internal/client/api"
)

var usage = map[string]string{
	"show":   "show <id>",
	"delete": "delete <id>",
	"share":  "share <id>",
	"export": "export <id>",
	"shared": "shared <uuid>",
}

func (a *App) prompt() string {
	if a.userName != "" {
		return fmt.Sprintf("diagrams (%s)> ", a.userName)
	}
	if a.isLoggedIn() {
		return "diagrams (signed in)> "
	}
	return "diagrams> "
}

// Run reads commands until EOF, "exit" or ctx cancellation.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Diagrams CLI (type 'help' for commands)")

	for ctx.Err() == nil {
		fmt.Fprint(a.out, a.prompt())

		line, err := a.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintln(a.out, "read error:", err)
			return
		}
		eof := err != nil

		parts := strings.Fields(line)
		if len(parts) > 0 {
			if quit := a.dispatch(ctx, parts[0], parts[1:]); quit {
				return
			}
		}
		if eof {
			fmt.Fprintln(a.out)
			return
		}
	}
}

// dispatch runs one command and reports whether the REPL should stop.
func (a *App) dispatch(ctx context.Context, cmd string, args []string) bool {
	var err error

	switch cmd {
	case "help":
		a.help()
	case "exit", "quit":
		fmt.Fprintln(a.out, "Bye!")
		return true
	case "register":
		err = a.Register(ctx)
	case "login":
		err = a.Login(ctx)
	case "logout":
		err = a.Logout(ctx)
	case "me":
		err = a.Me(ctx)
	case "unregister":
		err = a.Unregister(ctx)
	case "new":
		err = a.newDiagram(ctx)
	case "list", "l":
		err = a.list(ctx)
	case "show":
		err = a.show(ctx, args)
	case "delete":
		err = a.delete(ctx, args)
	case "share":
		err = a.share(ctx, args)
	case "export":
		err = a.export(ctx, args)
	case "shared":
		err = a.shared(ctx, args)
	default:
		fmt.Fprintln(a.out, "Unknown command:", cmd)
		return false
	}

	a.report(cmd, err)
	return false
}

func (a *App) report(cmd string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintln(a.out, "Usage:", usage[cmd])
	case errors.Is(err, api.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable, try again later")
	case errors.Is(err, api.ErrUnauthorized) && cmd != "login":
		fmt.Fprintln(a.out, "Not signed in or session expired, please login")
		if clearErr := a.forgetSession(); clearErr != nil {
			fmt.Fprintln(a.out, "Error:", clearErr)
		}
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
}

func (a *App) help() {
	if a.isLoggedIn() {
		fmt.Fprintln(a.out, "Available commands: me, (l)ist, new, show, delete, share, export, shared, logout, unregister, exit")
	} else {
		fmt.Fprintln(a.out, "Available commands: register, login, shared, exit")
	}
}

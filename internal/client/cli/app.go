package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/dmitrijs2005/diagrams/internal/client/api"
	"github.com/dmitrijs2005/diagrams/internal/client/config"
	"github.com/dmitrijs2005/diagrams/internal/client/tokenstore"
)

// APIClient is the part of api.Client the CLI depends on.
type APIClient interface {
	SetToken(token string)
	Token() string
	Register(ctx context.Context, username, email, password string) (*api.User, error)
	Login(ctx context.Context, username, password string) (*api.Token, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*api.User, error)
	DeleteAccount(ctx context.Context) error
	CreateDiagram(ctx context.Context, title string, content json.RawMessage) (*api.Diagram, error)
	ListDiagrams(ctx context.Context) ([]api.Diagram, error)
	GetDiagram(ctx context.Context, id int64) (*api.Diagram, error)
	DeleteDiagram(ctx context.Context, id int64) error
	ShareDiagram(ctx context.Context, id int64) (*api.Diagram, error)
	ExportDiagram(ctx context.Context, id int64) (*api.Export, error)
	GetShared(ctx context.Context, shareUUID string) (*api.Diagram, error)
}

type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

type App struct {
	config   *config.Config
	api      APIClient
	store    TokenStore
	reader   *bufio.Reader
	out      io.Writer
	userName string
}

func NewApp(c *config.Config) (*App, error) {
	store := tokenstore.NewFileStore(c.TokenFile)
	token, err := store.Load()
	if err != nil {
		return nil, err
	}

	client := api.NewClient(c.ServerURL, c.RequestTimeout)
	client.SetToken(token)

	return &App{
		config: c,
		api:    client,
		store:  store,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.api.Token() != ""
}

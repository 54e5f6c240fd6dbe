package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/diagrams/internal/client/api"
	"github.com/dmitrijs2005/diagrams/internal/client/config"
)

type fakeAPI struct {
	token string
	err   error

	regUser, regEmail, regPass string
	loginUser, loginPass       string
	created                    json.RawMessage
	createdTitle               string
	deletedID                  int64
	logoutCalled               bool
	accountDeleted             bool

	diagrams []api.Diagram
}

func (f *fakeAPI) SetToken(token string) { f.token = token }
func (f *fakeAPI) Token() string         { return f.token }

func (f *fakeAPI) Register(_ context.Context, username, email, password string) (*api.User, error) {
	f.regUser, f.regEmail, f.regPass = username, email, password
	if f.err != nil {
		return nil, f.err
	}
	return &api.User{ID: 2, Username: username, Email: email}, nil
}

func (f *fakeAPI) Login(_ context.Context, username, password string) (*api.Token, error) {
	f.loginUser, f.loginPass = username, password
	if f.err != nil {
		return nil, f.err
	}
	f.token = "eyJ.token"
	return &api.Token{AccessToken: f.token, TokenType: "bearer"}, nil
}

func (f *fakeAPI) Logout(context.Context) error {
	f.logoutCalled = true
	if f.err != nil {
		return f.err
	}
	f.token = ""
	return nil
}

func (f *fakeAPI) Me(context.Context) (*api.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &api.User{ID: 1, Username: "alice", Email: "alice@example.com"}, nil
}

func (f *fakeAPI) DeleteAccount(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.accountDeleted = true
	return nil
}

func (f *fakeAPI) CreateDiagram(_ context.Context, title string, content json.RawMessage) (*api.Diagram, error) {
	f.createdTitle, f.created = title, content
	if f.err != nil {
		return nil, f.err
	}
	if title == "" {
		title = "Untitled diagram"
	}
	return &api.Diagram{ID: 7, Title: title, Content: content}, nil
}

func (f *fakeAPI) ListDiagrams(context.Context) ([]api.Diagram, error) {
	return f.diagrams, f.err
}

func (f *fakeAPI) GetDiagram(_ context.Context, id int64) (*api.Diagram, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &api.Diagram{ID: id, Title: "flow", Content: json.RawMessage(`{"nodes":[1]}`)}, nil
}

func (f *fakeAPI) DeleteDiagram(_ context.Context, id int64) error {
	f.deletedID = id
	return f.err
}

func (f *fakeAPI) ShareDiagram(_ context.Context, id int64) (*api.Diagram, error) {
	if f.err != nil {
		return nil, f.err
	}
	u := "5f1d7c2a-0000-4000-8000-000000000007"
	return &api.Diagram{ID: id, ShareUUID: &u}, nil
}

func (f *fakeAPI) ExportDiagram(context.Context, int64) (*api.Export, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &api.Export{URL: "http://s3/export.json"}, nil
}

func (f *fakeAPI) GetShared(_ context.Context, shareUUID string) (*api.Diagram, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &api.Diagram{ID: 7, Title: "shared " + shareUUID}, nil
}

type fakeStore struct {
	token   string
	saveErr error
	cleared bool
}

func (s *fakeStore) Load() (string, error) { return s.token, nil }
func (s *fakeStore) Save(token string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.token = token
	return nil
}
func (s *fakeStore) Clear() error {
	s.token, s.cleared = "", true
	return nil
}

func newTestApp(input string) (*App, *fakeAPI, *fakeStore, *bytes.Buffer) {
	f := &fakeAPI{}
	s := &fakeStore{}
	out := &bytes.Buffer{}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return &App{
		config: cfg,
		api:    f,
		store:  s,
		reader: bufio.NewReader(strings.NewReader(input)),
		out:    out,
	}, f, s, out
}

// stubPassword makes getPassword return pw without touching the terminal.
func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(io.Writer) (string, error) { return pw, nil }
	t.Cleanup(func() { getPassword = orig })
}

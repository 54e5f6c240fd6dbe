package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/diagrams/internal/common"
	"github.com/dmitrijs2005/diagrams/internal/server/auth"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
	"github.com/dmitrijs2005/diagrams/internal/server/services"
)

var testSecret = []byte("test-secret")

type fakeAccount struct {
	user     models.User
	password string
}

// fakeUsers signs real tokens so the transport sees genuine JWTs.
type fakeUsers struct {
	mu       sync.Mutex
	accounts map[int64]*fakeAccount
	revoked  map[string]bool
	issuer   *auth.Issuer
	verifier *auth.Verifier
	failWith error
	now      time.Time
}

func newFakeUsers() *fakeUsers {
	f := &fakeUsers{
		accounts: map[int64]*fakeAccount{},
		revoked:  map[string]bool{},
		issuer:   auth.NewIssuer(testSecret, "diagrams", 30*time.Minute),
		verifier: auth.NewVerifier(testSecret, "diagrams"),
		now:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.accounts[1] = &fakeAccount{
		user:     models.User{ID: 1, UserName: "alice", Email: "alice@example.com"},
		password: "correct",
	}
	return f
}

func (f *fakeUsers) Register(_ context.Context, userName, email, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, a := range f.accounts {
		if a.user.UserName == userName {
			return nil, common.ErrUsernameTaken
		}
		if a.user.Email == email {
			return nil, common.ErrEmailTaken
		}
	}
	id := int64(len(f.accounts) + 1)
	f.accounts[id] = &fakeAccount{user: models.User{ID: id, UserName: userName, Email: email, CreatedAt: f.now}, password: password}
	u := f.accounts[id].user
	return &u, nil
}

func (f *fakeUsers) Login(_ context.Context, userName, password string) (*models.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, a := range f.accounts {
		if a.user.UserName == userName && a.password == password && password != "" {
			return f.issuer.Issue(a.user.ID)
		}
	}
	return nil, common.ErrInvalidCredentials
}

func (f *fakeUsers) Authenticate(_ context.Context, token string) (*models.SessionIdentity, error) {
	claims, err := f.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revoked[claims.TokenID] {
		return nil, common.ErrTokenRevoked
	}
	a, ok := f.accounts[claims.UserID]
	if !ok {
		return nil, common.ErrSubjectNotFound
	}
	return &models.SessionIdentity{
		UserID:    a.user.ID,
		UserName:  a.user.UserName,
		Email:     a.user.Email,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func (f *fakeUsers) Logout(_ context.Context, id *models.SessionIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[id.TokenID] = true
	return nil
}

func (f *fakeUsers) DeleteAccount(_ context.Context, id *models.SessionIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[id.UserID]; !ok {
		return common.ErrSubjectNotFound
	}
	delete(f.accounts, id.UserID)
	return nil
}

type fakeDiagrams struct {
	mu     sync.Mutex
	byID   map[int64]*models.Diagram
	nextID int64
}

func newFakeDiagrams() *fakeDiagrams {
	return &fakeDiagrams{byID: map[int64]*models.Diagram{}}
}

func (f *fakeDiagrams) owned(userID, id int64) (*models.Diagram, error) {
	d, ok := f.byID[id]
	if !ok || d.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return d, nil
}

func (f *fakeDiagrams) Create(_ context.Context, userID int64, title string, content json.RawMessage) (*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(content) > 0 && !json.Valid(content) {
		return nil, common.ErrValidation
	}
	if title == "" {
		title = models.DefaultDiagramTitle
	}
	f.nextID++
	now := time.Now().UTC()
	d := &models.Diagram{ID: f.nextID, UserID: userID, Title: title, Content: content, CreatedAt: now, UpdatedAt: now}
	f.byID[d.ID] = d
	c := *d
	return &c, nil
}

func (f *fakeDiagrams) List(_ context.Context, userID int64) ([]*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Diagram, 0)
	for id := f.nextID; id > 0; id-- {
		if d, ok := f.byID[id]; ok && d.UserID == userID {
			c := *d
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeDiagrams) Get(_ context.Context, userID, id int64) (*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.owned(userID, id)
	if err != nil {
		return nil, err
	}
	c := *d
	return &c, nil
}

func (f *fakeDiagrams) Update(_ context.Context, userID, id int64, patch services.DiagramPatch) (*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.owned(userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		d.Title = *patch.Title
	}
	if patch.Content != nil {
		d.Content = patch.Content
	}
	c := *d
	return &c, nil
}

func (f *fakeDiagrams) Delete(_ context.Context, userID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.owned(userID, id); err != nil {
		return err
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeDiagrams) Share(_ context.Context, userID, id int64) (*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.owned(userID, id)
	if err != nil {
		return nil, err
	}
	if d.ShareUUID == nil {
		s := fmt.Sprintf("5f1d7c2a-0000-4000-8000-%012d", id)
		d.ShareUUID = &s
	}
	c := *d
	return &c, nil
}

func (f *fakeDiagrams) GetShared(_ context.Context, shareUUID string) (*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.byID {
		if d.ShareUUID != nil && *d.ShareUUID == shareUUID {
			c := *d
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeExporter struct {
	diagrams *fakeDiagrams
	fail     bool
}

func (f *fakeExporter) Export(ctx context.Context, userID, id int64) (*services.ExportResult, error) {
	if f.fail {
		return nil, errors.New("storage unavailable")
	}
	if _, err := f.diagrams.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return &services.ExportResult{
		URL:       "https://storage.example/diagrams/export.json?X-Amz-Signature=abc",
		Key:       "diagrams/export.json",
		ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

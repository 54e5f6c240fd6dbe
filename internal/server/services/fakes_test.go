package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/diagrams/internal/common"
	"github.com/dmitrijs2005/diagrams/internal/cryptox"
	"github.com/dmitrijs2005/diagrams/internal/dbx"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
	"github.com/dmitrijs2005/diagrams/internal/server/repositories/diagrams"
	"github.com/dmitrijs2005/diagrams/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/diagrams/internal/server/repositories/users"
)

// testParams keeps argon2 cheap in tests.
var testParams = cryptox.Params{MemoryKiB: 64, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- users ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	byID   map[int64]*models.User
	nextID int64
	err    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[int64]*models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, ex := range f.byID {
		if ex.UserName == u.UserName {
			return nil, common.ErrUsernameTaken
		}
		if ex.Email == u.Email {
			return nil, common.ErrEmailTaken
		}
	}
	f.nextID++
	c := *u
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	f.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeUsersRepo) GetUserByLogin(_ context.Context, userName string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if u.UserName == userName {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsersRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

// --- revocations ---

type fakeRevocationsRepo struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newFakeRevocationsRepo() *fakeRevocationsRepo {
	return &fakeRevocationsRepo{revoked: map[string]time.Time{}}
}

func (f *fakeRevocationsRepo) Revoke(_ context.Context, jti string, _ int64, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.revoked[jti]; !ok {
		f.revoked[jti] = exp
	}
	return nil
}

func (f *fakeRevocationsRepo) IsRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.revoked[jti]
	return ok, nil
}

func (f *fakeRevocationsRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for jti, exp := range f.revoked {
		if exp.Before(now) {
			delete(f.revoked, jti)
			n++
		}
	}
	return n, nil
}

// --- diagrams ---

type fakeDiagramsRepo struct {
	mu     sync.Mutex
	byID   map[int64]*models.Diagram
	nextID int64
	err    error
}

func newFakeDiagramsRepo() *fakeDiagramsRepo {
	return &fakeDiagramsRepo{byID: map[int64]*models.Diagram{}}
}

func (f *fakeDiagramsRepo) owned(id, userID int64) (*models.Diagram, error) {
	d, ok := f.byID[id]
	if !ok || d.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return d, nil
}

func (f *fakeDiagramsRepo) Create(_ context.Context, d *models.Diagram) (*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	c := *d
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeDiagramsRepo) GetByID(_ context.Context, id, userID int64) (*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d, err := f.owned(id, userID)
	if err != nil {
		return nil, err
	}
	c := *d
	return &c, nil
}

func (f *fakeDiagramsRepo) ListByUser(_ context.Context, userID int64) ([]*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.Diagram, 0)
	for _, d := range f.byID {
		if d.UserID == userID {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeDiagramsRepo) Update(_ context.Context, d *models.Diagram) (*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ex, err := f.owned(d.ID, d.UserID)
	if err != nil {
		return nil, err
	}
	ex.Title = d.Title
	ex.Content = d.Content
	ex.UpdatedAt = time.Now()
	c := *ex
	return &c, nil
}

func (f *fakeDiagramsRepo) Delete(_ context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, err := f.owned(id, userID); err != nil {
		return err
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeDiagramsRepo) SetShareUUID(_ context.Context, id, userID int64, shareUUID string) (*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d, err := f.owned(id, userID)
	if err != nil {
		return nil, err
	}
	if d.ShareUUID == nil {
		s := shareUUID
		d.ShareUUID = &s
	}
	c := *d
	return &c, nil
}

func (f *fakeDiagramsRepo) GetByShareUUID(_ context.Context, shareUUID string) (*models.Diagram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, d := range f.byID {
		if d.ShareUUID != nil && *d.ShareUUID == shareUUID {
			c := *d
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

// --- manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRevocationsRepo
	d *fakeDiagramsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), r: newFakeRevocationsRepo(), d: newFakeDiagramsRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.u }
func (m *fakeRepoManager) Revocations(dbx.DBTX) revocations.Repository  { return m.r }
func (m *fakeRepoManager) Diagrams(dbx.DBTX) diagrams.Repository        { return m.d }

func newDiagram(userID int64, title, content string) *models.Diagram {
	d := &models.Diagram{UserID: userID, Title: title}
	if content != "" {
		d.Content = []byte(content)
	}
	return d
}

package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/mailtoken/internal/common"
	"github.com/dmitrijs2005/mailtoken/internal/dbx"
	"github.com/dmitrijs2005/mailtoken/internal/server/models"
	"github.com/dmitrijs2005/mailtoken/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// fakeUsersRepo is an in-memory users.Repository keyed by email.
type fakeUsersRepo struct {
	mu    sync.Mutex
	rows  map[string]models.User
	seq   int
	calls int

	existsErr error
	getErr    error
	createErr error

	// vanishAfterExists deletes the row right after Exists reports it,
	// simulating a concurrent delete.
	vanishAfterExists bool
}

func newFakeUsersRepo(us ...models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{rows: map[string]models.User{}}
	for _, u := range us {
		f.rows[u.Email] = u
	}
	return f
}

func (f *fakeUsersRepo) Exists(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.rows[email]
	if ok && f.vanishAfterExists {
		delete(f.rows, email)
	}
	return ok, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.rows[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (f *fakeUsersRepo) Create(ctx context.Context, req models.NewUserRequest) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return false, f.createErr
	}
	if _, ok := f.rows[req.Email]; ok {
		return false, common.ErrConstraintViolation
	}
	f.seq++
	f.rows[req.Email] = models.User{ID: fmt.Sprintf("id-%d", f.seq), Name: req.Name, Email: req.Email, IsActive: true}
	return true, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository           { return m.u }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

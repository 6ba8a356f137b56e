package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/mailtoken/internal/common"
	"github.com/dmitrijs2005/mailtoken/internal/dbx"
	"github.com/dmitrijs2005/mailtoken/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX, so it can run
// against the pool (*sql.DB), a single connection or a transaction.
type PostgresRepository struct {
	db    dbx.DBTX
	newID func() string
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, newID: uuid.NewString}
}

func (r *PostgresRepository) Exists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM "User" WHERE "email" = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, classify(err)
	}

	return exists, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT "id", "name", "email" FROM "User"
		 WHERE "email" = $1
		 `

	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, classify(err)
		}
		return nil, common.ErrorNotFound
	}

	user, err := scanUser(rows)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, req models.NewUserRequest) (bool, error) {
	query :=
		`INSERT INTO "User" ("id", "name", "email", "isActive", "createdAt", "updatedAt")
		 VALUES ($1, $2, $3, TRUE, NOW(), NOW())
		 `

	res, err := r.db.ExecContext(ctx, query, r.newID(), req.Name, req.Email)
	if err != nil {
		return false, classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n == 1, nil
}

var userColumns = []string{"id", "name", "email"}

// scanUser maps the current row onto a User. Unexpected columns or NULL
// values fail with common.ErrRowMapping instead of yielding a partial record.
func scanUser(rows *sql.Rows) (*models.User, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRowMapping, err)
	}
	if len(cols) != len(userColumns) {
		return nil, fmt.Errorf("%w: got columns %v, want %v", common.ErrRowMapping, cols, userColumns)
	}
	for i, c := range cols {
		if c != userColumns[i] {
			return nil, fmt.Errorf("%w: got columns %v, want %v", common.ErrRowMapping, cols, userColumns)
		}
	}

	var id, name, email sql.NullString
	if err := rows.Scan(&id, &name, &email); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRowMapping, err)
	}
	if !id.Valid || !name.Valid || !email.Valid {
		return nil, fmt.Errorf("%w: NULL in user row", common.ErrRowMapping)
	}

	return &models.User{ID: id.String, Name: name.String, Email: email.String}, nil
}

package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertUserSQL = `INSERT INTO users (id, email, full_name, role)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET
		email = EXCLUDED.email,
		full_name = EXCLUDED.full_name,
		role = EXCLUDED.role`

// User is the minimal account record orders reference. Authentication lives
// outside this service; the row exists so order ownership has a foreign key
// target.
type User struct {
	ID       string
	Email    string
	FullName string
	Role     string
}

// UserRepository provides the user writes the seed CLI needs.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Upsert stores a user row by id.
func (r *UserRepository) Upsert(ctx context.Context, u *User) error {
	_, err := r.pool.Exec(ctx, upsertUserSQL, u.ID, u.Email, u.FullName, u.Role)
	if err != nil {
		return errors.Wrapf(err, "upsert user %s", u.ID)
	}
	return nil
}

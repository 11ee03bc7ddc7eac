package repository

import (
	"context"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// EmailTaken reports whether another user than exceptID uses the email.
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id int64, profile domain.Profile) (*domain.User, error)
	UpdateAccount(ctx context.Context, id int64, name, email string, role domain.Role, active bool) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateAvatar(ctx context.Context, id int64, avatar string) (*domain.User, error)
	SetActive(ctx context.Context, id int64, active bool) (*domain.User, error)
}

type PGUserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &PGUserRepository{db: db}
}

const userColumns = `id, name, email, password_hash, role, is_active, phone, birth_date, document_number,
	address, nationality, avatar, bio, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.Phone, &u.BirthDate,
		&u.DocumentNumber, &u.Address, &u.Nationality, &u.Avatar, &u.Bio, &u.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *PGUserRepository) Create(ctx context.Context, u *domain.User) error {
	err := conn(ctx, r.db).QueryRow(ctx, `INSERT INTO users (name, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		u.Name, u.Email, u.PasswordHash, u.Role, u.IsActive).Scan(&u.ID, &u.CreatedAt)
	return translate(err)
}

func (r *PGUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(conn(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *PGUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(conn(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *PGUserRepository) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	var taken bool
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`, email, exceptID).Scan(&taken)
	return taken, err
}

func (r *PGUserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *PGUserRepository) UpdateProfile(ctx context.Context, id int64, p domain.Profile) (*domain.User, error) {
	return scanUser(conn(ctx, r.db).QueryRow(ctx, `UPDATE users SET
			name = $2, email = $3, phone = $4, birth_date = $5, document_number = $6,
			address = $7, nationality = $8, bio = $9
		WHERE id = $1 RETURNING `+userColumns,
		id, p.Name, p.Email, p.Phone, p.BirthDate, p.DocumentNumber, p.Address, p.Nationality, p.Bio))
}

func (r *PGUserRepository) UpdateAccount(ctx context.Context, id int64, name, email string, role domain.Role, active bool) (*domain.User, error) {
	return scanUser(conn(ctx, r.db).QueryRow(ctx, `UPDATE users SET name = $2, email = $3, role = $4, is_active = $5
		WHERE id = $1 RETURNING `+userColumns, id, name, email, role, active))
}

func (r *PGUserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGUserRepository) UpdateAvatar(ctx context.Context, id int64, avatar string) (*domain.User, error) {
	return scanUser(conn(ctx, r.db).QueryRow(ctx, `UPDATE users SET avatar = $2 WHERE id = $1 RETURNING `+userColumns, id, avatar))
}

func (r *PGUserRepository) SetActive(ctx context.Context, id int64, active bool) (*domain.User, error) {
	return scanUser(conn(ctx, r.db).QueryRow(ctx, `UPDATE users SET is_active = $2 WHERE id = $1 RETURNING `+userColumns, id, active))
}

var _ UserRepository = (*PGUserRepository)(nil)

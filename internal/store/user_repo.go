package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"identity-service/internal/model"
)

const userColumns = `id, company_id, email, hashed_password, first_name,
	last_name, language, phone_number, avatar_file_id, is_active, is_verified,
	created_at, updated_at`

type UserRepo struct {
	db Querier
}

func NewUserRepo(s *Store) *UserRepo {
	return &UserRepo{db: s.Pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.HashedPassword,
		&u.FirstName, &u.LastName, &u.Language, &u.PhoneNumber,
		&u.AvatarFileID, &u.IsActive, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE email = $1`, email)
	return scanUser(row)
}

// ListByCompany returns the users belonging to one tenant.
func (r *UserRepo) ListByCompany(ctx context.Context, companyID string) ([]*model.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE company_id = $1 ORDER BY created_at`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO app_user (id, company_id, email, hashed_password,
		     first_name, last_name, language, phone_number, is_active, is_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		u.ID, u.CompanyID, u.Email, u.HashedPassword, u.FirstName, u.LastName,
		u.Language, u.PhoneNumber, u.IsActive, u.IsVerified)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	row := r.db.QueryRow(ctx,
		`UPDATE app_user SET email = $2, first_name = $3, last_name = $4,
		     language = $5, phone_number = $6, is_active = $7, is_verified = $8,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Language, u.PhoneNumber,
		u.IsActive, u.IsVerified)
	if err := row.Scan(&u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAvatar updates the attachment reference. A nil fileID clears it.
func (r *UserRepo) SetAvatar(ctx context.Context, id string, fileID *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE app_user SET avatar_file_id = $2, updated_at = NOW() WHERE id = $1`,
		id, fileID)
	if err != nil {
		return fmt.Errorf("set user avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

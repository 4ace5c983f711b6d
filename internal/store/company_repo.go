package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"identity-service/internal/model"
)

const companyColumns = `id, name, description, website, phone_number, email,
	address, postal_code, city, country, logo_file_id, created_at, updated_at`

type CompanyRepo struct {
	db Querier
}

func NewCompanyRepo(s *Store) *CompanyRepo {
	return &CompanyRepo{db: s.Pool}
}

func scanCompany(row pgx.Row) (*model.Company, error) {
	var c model.Company
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Website, &c.PhoneNumber,
		&c.Email, &c.Address, &c.PostalCode, &c.City, &c.Country,
		&c.LogoFileID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan company: %w", err)
	}
	return &c, nil
}

func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*model.Company, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM company WHERE id = $1`, id)
	return scanCompany(row)
}

func (r *CompanyRepo) List(ctx context.Context) ([]*model.Company, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+companyColumns+` FROM company ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	companies := []*model.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (r *CompanyRepo) Create(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO company (id, name, description, website, phone_number, email,
		     address, postal_code, city, country)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Description, c.Website, c.PhoneNumber, c.Email,
		c.Address, c.PostalCode, c.City, c.Country)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (r *CompanyRepo) Update(ctx context.Context, c *model.Company) error {
	row := r.db.QueryRow(ctx,
		`UPDATE company SET name = $2, description = $3, website = $4,
		     phone_number = $5, email = $6, address = $7, postal_code = $8,
		     city = $9, country = $10, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		c.ID, c.Name, c.Description, c.Website, c.PhoneNumber, c.Email,
		c.Address, c.PostalCode, c.City, c.Country)
	if err := row.Scan(&c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update company: %w", err)
	}
	return nil
}

func (r *CompanyRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM company WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLogo updates the attachment reference. A nil fileID clears it.
func (r *CompanyRepo) SetLogo(ctx context.Context, id string, fileID *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE company SET logo_file_id = $2, updated_at = NOW() WHERE id = $1`,
		id, fileID)
	if err != nil {
		return fmt.Errorf("set company logo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

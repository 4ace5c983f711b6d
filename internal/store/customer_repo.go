package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"identity-service/internal/model"
)

const customerColumns = `id, company_id, name, email, contact_person,
	phone_number, address, logo_file_id, created_at, updated_at`

type CustomerRepo struct {
	db Querier
}

func NewCustomerRepo(s *Store) *CustomerRepo {
	return &CustomerRepo{db: s.Pool}
}

func scanCustomer(row pgx.Row) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.ContactPerson,
		&c.PhoneNumber, &c.Address, &c.LogoFileID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return &c, nil
}

func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customer WHERE id = $1`, id)
	return scanCustomer(row)
}

// ListByCompany returns the customers owned by one tenant.
func (r *CustomerRepo) ListByCompany(ctx context.Context, companyID string) ([]*model.Customer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+customerColumns+` FROM customer WHERE company_id = $1 ORDER BY created_at`,
		companyID)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := []*model.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *CustomerRepo) Create(ctx context.Context, c *model.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO customer (id, company_id, name, email, contact_person,
		     phone_number, address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		c.ID, c.CompanyID, c.Name, c.Email, c.ContactPerson, c.PhoneNumber, c.Address)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *CustomerRepo) Update(ctx context.Context, c *model.Customer) error {
	row := r.db.QueryRow(ctx,
		`UPDATE customer SET name = $2, email = $3, contact_person = $4,
		     phone_number = $5, address = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		c.ID, c.Name, c.Email, c.ContactPerson, c.PhoneNumber, c.Address)
	if err := row.Scan(&c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

func (r *CustomerRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM customer WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLogo updates the attachment reference. A nil fileID clears it.
func (r *CustomerRepo) SetLogo(ctx context.Context, id string, fileID *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE customer SET logo_file_id = $2, updated_at = NOW() WHERE id = $1`,
		id, fileID)
	if err != nil {
		return fmt.Errorf("set customer logo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Package model holds the identity-service domain types shared across layers.
package model

import "time"

// Principal is the authenticated caller, derived once per request from the
// signed access_token cookie. It is never persisted.
type Principal struct {
	CompanyID string
	UserID    string
}

type Company struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Website     *string   `json:"website,omitempty"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Address     *string   `json:"address,omitempty"`
	PostalCode  *string   `json:"postal_code,omitempty"`
	City        *string   `json:"city,omitempty"`
	Country     *string   `json:"country,omitempty"`
	LogoFileID  *string   `json:"logo_file_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasLogo reports whether a logo is attached. The file id and the flag are
// never allowed to diverge: the flag is derived, not stored.
func (c *Company) HasLogo() bool { return c.LogoFileID != nil }

type Customer struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	Name          string    `json:"name"`
	Email         *string   `json:"email,omitempty"`
	ContactPerson *string   `json:"contact_person,omitempty"`
	PhoneNumber   *string   `json:"phone_number,omitempty"`
	Address       *string   `json:"address,omitempty"`
	LogoFileID    *string   `json:"logo_file_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *Customer) HasLogo() bool { return c.LogoFileID != nil }

type User struct {
	ID             string    `json:"id"`
	CompanyID      string    `json:"company_id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	FirstName      *string   `json:"first_name,omitempty"`
	LastName       *string   `json:"last_name,omitempty"`
	Language       *string   `json:"language,omitempty"`
	PhoneNumber    *string   `json:"phone_number,omitempty"`
	AvatarFileID   *string   `json:"avatar_file_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	IsVerified     bool      `json:"is_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) HasAvatar() bool { return u.AvatarFileID != nil }

package models

import "time"

// User represents a platform member. Credits are mutated only through the
// ledger service; Rating only through the rating aggregator.
type User struct {
	ID        string     `json:"id" db:"id" example:"b7a9c1d2-0f34-4e5a-9b8c-1d2e3f4a5b6c"`
	Email     string     `json:"email" db:"email" example:"user@example.com"`
	Name      string     `json:"name" db:"name" example:"Jane Doe"`
	Bio       *string    `json:"bio,omitempty" db:"bio"`
	Avatar    *string    `json:"avatar,omitempty" db:"avatar"`
	Credits   int        `json:"credits" db:"credits" example:"50"`
	Rating    *float64   `json:"rating,omitempty" db:"rating" example:"4.5"`
	Version   int        `json:"-" db:"version"` // for optimistic balance updates
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// PublicProfile is the subset of User exposed to other members.
type PublicProfile struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Bio    *string  `json:"bio,omitempty"`
	Avatar *string  `json:"avatar,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

// Public returns the shareable view of a user.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Bio:    u.Bio,
		Avatar: u.Avatar,
		Rating: u.Rating,
	}
}

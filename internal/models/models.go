package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin      = "ADMIN"
	RoleAccountant = "ACCOUNTANT"
	RoleManager    = "MANAGER"
)

type User struct {
	ID           string  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string  `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string  `gorm:"not null" json:"-"`
	FullName     string  `gorm:"not null;default:''" json:"full_name"`
	Role         string  `gorm:"not null;default:MANAGER" json:"role"`
	Language     string  `gorm:"size:5;default:en" json:"language"`
	ChatID       *int64  `gorm:"uniqueIndex" json:"chat_id,omitempty"`
	ChatToken    *string `gorm:"size:64" json:"-"`
	IsActive     bool    `gorm:"not null;default:true" json:"is_active"`

	Departments []Department `gorm:"many2many:department_managers" json:"departments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsStaff reports whether the user may decide requests.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleAccountant
}

type Department struct {
	ID               uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string          `gorm:"uniqueIndex;not null" json:"name"`
	MonthlyBudget    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"monthly_budget"`
	Currency         string          `gorm:"size:3;not null;default:USD" json:"currency"`
	PrimaryManagerID *string         `gorm:"type:uuid" json:"primary_manager_id,omitempty"`

	PrimaryManager *User  `gorm:"foreignKey:PrimaryManagerID" json:"-"`
	Managers       []User `gorm:"many2many:department_managers" json:"managers,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Session struct {
	JTI       string     `gorm:"primaryKey;size:64" json:"jti"`
	UserID    string     `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

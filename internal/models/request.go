package models

import (
	"time"

	"github.com/shopspring/decimal"

	"subtrack/internal/money"
)

// Status is the request lifecycle state. Transition rules live in
// internal/workflow; the model only names the states.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusActive   Status = "ACTIVE"
	StatusExpired  Status = "EXPIRED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusActive, StatusExpired:
		return true
	}
	return false
}

// Decided reports whether the status represents an accountant's verdict.
// Used to word reversal notifications differently from first decisions.
func (s Status) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

type Request struct {
	ID           uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	PlatformName string          `gorm:"not null" json:"platform_name"`
	Cost         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"cost"`
	// FinalCost is the negotiated price captured on approval. Nil means the
	// requested Cost stands. Rejection and a reset to PENDING clear it.
	FinalCost *decimal.Decimal `gorm:"type:numeric(12,2)" json:"final_cost,omitempty"`
	Currency  string           `gorm:"size:3;not null;default:USD" json:"currency"`
	Frequency    money.Frequency `gorm:"size:10;not null" json:"frequency"`
	Status       Status          `gorm:"size:10;not null;default:PENDING;index" json:"status"`

	DepartmentID uint   `gorm:"not null;index" json:"department_id"`
	RequesterID  string `gorm:"type:uuid;not null;index" json:"requester_id"`

	PlanType      *string `json:"plan_type,omitempty"`
	ExternalURL   *string `json:"external_url,omitempty"`
	AttachmentKey *string `json:"attachment_key,omitempty"`
	// CredentialsEnc holds the vault ciphertext, never the plaintext.
	CredentialsEnc  *string `json:"-"`
	RejectionReason *string `json:"rejection_reason,omitempty"`

	ExchangeRate *decimal.Decimal `gorm:"type:numeric(12,6)" json:"exchange_rate,omitempty"`
	LocalCost    *decimal.Decimal `gorm:"type:numeric(12,2)" json:"local_cost,omitempty"`
	PaymentCard  *string          `json:"payment_card,omitempty"`

	StartDate   *time.Time `json:"start_date,omitempty"`
	RenewalDate *time.Time `json:"renewal_date,omitempty"`

	// DeletedAt is the soft-delete marker. Managed by the repository rather
	// than gorm.DeletedAt so reports and comments can still address the row.
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`

	Department *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Requester  *User       `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BilledCost is the amount a charge lands at: the approval override when one
// is in force, the requested cost otherwise.
func (r *Request) BilledCost() decimal.Decimal {
	if r.FinalCost != nil {
		return *r.FinalCost
	}
	return r.Cost
}

// EffectiveDate is the date a charge lands on for range accounting.
func (r *Request) EffectiveDate() time.Time {
	if r.StartDate != nil {
		return *r.StartDate
	}
	return r.CreatedAt
}

type RequestComment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID uint      `gorm:"not null;index" json:"request_id"`
	AuthorID  string    `gorm:"type:uuid;not null" json:"author_id"`
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorID   *string   `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	Action    string    `gorm:"not null" json:"action"`
	TargetID  *uint     `json:"target_id,omitempty"`
	Metadata  JSONB     `gorm:"type:jsonb;default:'{}'::jsonb" json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

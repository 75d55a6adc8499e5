package models

import (
	"time"

	"gorm.io/gorm"
)

// Tournament lifecycle status — informational only, maintained by the
// deadline sweeper. Applications are validated against the deadline itself,
// not against this field.
const (
	TournamentStatusOpen   = "open"
	TournamentStatusClosed = "closed"
)

// Application status values. An application starts as "applied" and is moved
// to "selected" or "rejected" by a decider.
const (
	ApplicationStatusApplied  = "applied"
	ApplicationStatusSelected = "selected"
	ApplicationStatusRejected = "rejected"
)

// Tournament is the root aggregate: a tournament and its applicant list.
type Tournament struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	Slug      string     `json:"slug" gorm:"index"`
	Title     string     `json:"title" gorm:"not null"`
	EntryFee  float64    `json:"entry_fee" gorm:"default:0"`
	Location  string     `json:"location"`
	Type      string     `json:"type"`
	Vacancies int        `json:"vacancies" gorm:"default:0"` // informational, not enforced as a cap
	Deadline  *time.Time `json:"deadline,omitempty"`
	Status    string     `json:"status" gorm:"type:varchar(16);default:'open'"`
	CreatedBy string     `json:"created_by" gorm:"not null;index"`

	// Relationships
	Applicants []TournamentApplication `json:"applicants" gorm:"foreignKey:TournamentID"`

	Timestamps
}

// TournamentApplication is one user's application to one tournament.
// The composite unique index is the hard guarantee against duplicate
// applications; the workflow pre-check only exists for a friendly error.
type TournamentApplication struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	TournamentID string     `json:"tournament_id" gorm:"not null;uniqueIndex:idx_tournament_applicant"`
	UserID       string     `json:"user_id" gorm:"not null;uniqueIndex:idx_tournament_applicant"`
	UserName     string     `json:"user_name"` // denormalized from the profile service
	Status       string     `json:"status" gorm:"type:varchar(16);default:'applied'"`
	AppliedAt    time.Time  `json:"applied_at" gorm:"autoCreateTime"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	DecidedBy    string     `json:"decided_by,omitempty"`
}

// TournamentPage is one page of the cached tournament listing.
type TournamentPage struct {
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
	HasMore  bool         `json:"has_more"`
	NextPage *int         `json:"next_page"`
	Data     []Tournament `json:"data"`
}

// UserApplication pairs a tournament with the user's own application entry,
// for the per-user application history view.
type UserApplication struct {
	Tournament  Tournament            `json:"tournament"`
	Application TournamentApplication `json:"application"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

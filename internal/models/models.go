package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "ACTIVE"
	LoanStatusReturned LoanStatus = "RETURNED"
)

// Loan is the one record this service owns. user_id and book_id reference
// collaborator-owned entities; referential integrity is checked at
// orchestration time only, never at the storage layer.
type Loan struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	BookID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"book_id"`
	IssueDate       time.Time  `gorm:"not null" json:"issue_date"`
	DueDate         time.Time  `gorm:"not null" json:"due_date"`
	ReturnDate      *time.Time `json:"return_date"`
	Status          LoanStatus `gorm:"size:16;not null;index" json:"status"`
	ExtensionsCount int        `gorm:"not null;default:0" json:"extensions_count"`
}

// BeforeCreate assigns the primary key in application code so the model
// behaves identically on postgres and the sqlite test driver.
func (l *Loan) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// UserSnapshot is a time-of-call view fetched from the User service. Never
// persisted here.
type UserSnapshot struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

// BookSnapshot is a time-of-call view fetched from the Book service. Never
// persisted here.
type BookSnapshot struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Copies          int       `json:"copies"`
	AvailableCopies int       `json:"available_copies"`
}

// AvailabilityOp selects the direction of a remote availability adjustment.
type AvailabilityOp string

const (
	AvailabilityIncrement AvailabilityOp = "increment"
	AvailabilityDecrement AvailabilityOp = "decrement"
)

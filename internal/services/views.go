package services

import (
	"time"

	"github.com/google/uuid"

	"loanservice/internal/models"
)

// View types returned by the read operations. Collaborator fields are
// filled from time-of-call snapshots and may be blank when a lookup was
// tolerated to fail (see GetUserLoanHistory).

type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name,omitempty"`
	Email string    `json:"email,omitempty"`
}

type BookRef struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title,omitempty"`
	Author string    `json:"author,omitempty"`
}

// LoanDetails is the fully enriched single-loan view.
type LoanDetails struct {
	ID         uuid.UUID         `json:"id"`
	User       UserRef           `json:"user"`
	Book       BookRef           `json:"book"`
	IssueDate  time.Time         `json:"issue_date"`
	DueDate    time.Time         `json:"due_date"`
	ReturnDate *time.Time        `json:"return_date"`
	Status     models.LoanStatus `json:"status"`
}

// HistoryEntry is one loan in a user's history, enriched with the book
// snapshot where it could be resolved.
type HistoryEntry struct {
	ID         uuid.UUID         `json:"id"`
	Book       BookRef           `json:"book"`
	IssueDate  time.Time         `json:"issue_date"`
	DueDate    time.Time         `json:"due_date"`
	ReturnDate *time.Time        `json:"return_date"`
	Status     models.LoanStatus `json:"status"`
}

type UserLoanHistory struct {
	Loans []HistoryEntry `json:"loans"`
	Total int            `json:"total"`
}

// OverdueLoan is an active loan past its due date.
type OverdueLoan struct {
	ID          uuid.UUID `json:"id"`
	User        UserRef   `json:"user"`
	Book        BookRef   `json:"book"`
	IssueDate   time.Time `json:"issue_date"`
	DueDate     time.Time `json:"due_date"`
	DaysOverdue int       `json:"days_overdue"`
}

// ExtensionResult reports a due-date extension. OriginalDueDate is the due
// date the loan had before this extension was applied.
type ExtensionResult struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	BookID          uuid.UUID         `json:"book_id"`
	IssueDate       time.Time         `json:"issue_date"`
	OriginalDueDate time.Time         `json:"original_due_date"`
	ExtendedDueDate time.Time         `json:"extended_due_date"`
	Status          models.LoanStatus `json:"status"`
	ExtensionsCount int               `json:"extensions_count"`
}

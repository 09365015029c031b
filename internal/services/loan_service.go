package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"loanservice/internal/apperrors"
	"loanservice/internal/clients"
	"loanservice/internal/logger"
	"loanservice/internal/models"
	"loanservice/internal/repositories"
)

// MaxExtensions caps how often a single loan's due date may be pushed out.
// Enforced here rather than at the HTTP boundary so direct callers of the
// orchestrator cannot extend without limit.
const MaxExtensions = 3

// ─── Service Interface ────────────────────────────────────────────────────────

// LoanService is the loan lifecycle orchestrator. It composes the loan store
// with the breaker-guarded User and Book gateways. No operation retries a
// collaborator call; resilience lives entirely in the failure isolators.
type LoanService interface {
	CreateLoan(ctx context.Context, userID, bookID uuid.UUID, dueDate time.Time) (*models.Loan, error)
	ReturnLoan(ctx context.Context, loanID uuid.UUID) (*models.Loan, error)
	ExtendLoan(ctx context.Context, loanID uuid.UUID, extensionDays int) (*ExtensionResult, error)
	GetLoanDetails(ctx context.Context, loanID uuid.UUID) (*LoanDetails, error)
	GetUserLoanHistory(ctx context.Context, userID uuid.UUID) (*UserLoanHistory, error)
	GetOverdueLoans(ctx context.Context) ([]OverdueLoan, error)
}

// ─── Implementation ───────────────────────────────────────────────────────────

type loanService struct {
	log   *logger.Logger
	loans repositories.LoanRepository
	users clients.UserClient
	books clients.BookClient

	now func() time.Time
}

func NewLoanService(
	log *logger.Logger,
	loans repositories.LoanRepository,
	users clients.UserClient,
	books clients.BookClient,
) LoanService {
	return &loanService{
		log:   log.With("service", "LoanService"),
		loans: loans,
		users: users,
		books: books,
		now:   time.Now,
	}
}

// ─── Create ───────────────────────────────────────────────────────────────────

// CreateLoan validates user and book existence and availability, persists the
// loan, then decrements the book's availability remotely.
//
// The decrement deliberately happens after the loan is durably stored; if it
// fails, the loan stays and the error is surfaced. There is no rollback and
// no later reconciliation — this is the documented consistency window.
func (s *loanService) CreateLoan(ctx context.Context, userID, bookID uuid.UUID, dueDate time.Time) (*models.Loan, error) {
	if _, err := s.users.FetchUser(ctx, userID); err != nil {
		return nil, s.collaboratorErr("CreateLoan", err)
	}

	book, err := s.books.FetchBook(ctx, bookID)
	if err != nil {
		return nil, s.collaboratorErr("CreateLoan", err)
	}
	if book.AvailableCopies <= 0 {
		return nil, apperrors.NewConflict(apperrors.ReasonNoCopies, "no available copies of the book")
	}

	now := s.now().UTC()
	if dueDate.Before(now) {
		return nil, apperrors.NewConflict(apperrors.ReasonInvalidDueDate, "due date must not be in the past")
	}

	loan := &models.Loan{
		UserID:    userID,
		BookID:    bookID,
		IssueDate: now,
		DueDate:   dueDate.UTC(),
		Status:    models.LoanStatusActive,
	}
	if err := s.loans.Create(ctx, loan); err != nil {
		s.log.Error("failed to persist loan", "user_id", userID, "book_id", bookID, "error", err)
		return nil, apperrors.NewPersistenceError("CreateLoan", err)
	}

	if err := s.books.AdjustAvailability(ctx, bookID, models.AvailabilityDecrement); err != nil {
		// Loan is already durable; the availability impact has not been
		// applied. Surfaced, never reconciled.
		s.log.Error("availability decrement failed after loan was persisted",
			"loan_id", loan.ID, "book_id", bookID, "error", err)
		return nil, s.collaboratorErr("CreateLoan", err)
	}

	s.log.Info("loan created", "loan_id", loan.ID, "user_id", userID, "book_id", bookID, "due_date", loan.DueDate)
	return loan, nil
}

// ─── Return ───────────────────────────────────────────────────────────────────

// ReturnLoan marks an active loan RETURNED and increments the book's
// availability remotely. Returning twice is rejected, not silently accepted.
// Same post-persist ordering and consistency window as CreateLoan.
func (s *loanService) ReturnLoan(ctx context.Context, loanID uuid.UUID) (*models.Loan, error) {
	loan, err := s.loadLoan(ctx, loanID, "ReturnLoan")
	if err != nil {
		return nil, err
	}
	if loan.Status == models.LoanStatusReturned {
		return nil, apperrors.NewConflict(apperrors.ReasonAlreadyReturned, "loan is already returned")
	}

	now := s.now().UTC()
	loan.Status = models.LoanStatusReturned
	loan.ReturnDate = &now
	if err := s.loans.Update(ctx, loan); err != nil {
		s.log.Error("failed to persist return", "loan_id", loanID, "error", err)
		return nil, apperrors.NewPersistenceError("ReturnLoan", err)
	}

	if err := s.books.AdjustAvailability(ctx, loan.BookID, models.AvailabilityIncrement); err != nil {
		s.log.Error("availability increment failed after return was persisted",
			"loan_id", loanID, "book_id", loan.BookID, "error", err)
		return nil, s.collaboratorErr("ReturnLoan", err)
	}

	s.log.Info("loan returned", "loan_id", loanID, "book_id", loan.BookID)
	return loan, nil
}

// ─── Extend ───────────────────────────────────────────────────────────────────

// ExtendLoan pushes the due date out by extensionDays. The extension is
// additive to the current due date, not the original one, so repeated
// extensions compound from the latest deadline. User and book are
// re-validated for liveness only; their data is not otherwise used.
func (s *loanService) ExtendLoan(ctx context.Context, loanID uuid.UUID, extensionDays int) (*ExtensionResult, error) {
	loan, err := s.loadLoan(ctx, loanID, "ExtendLoan")
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanStatusActive {
		return nil, apperrors.NewConflict(apperrors.ReasonNotActive, "cannot extend due date for a non-active loan")
	}
	if loan.ExtensionsCount >= MaxExtensions {
		return nil, apperrors.NewConflict(apperrors.ReasonMaxExtensions, "maximum extensions reached")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.users.FetchUser(gctx, loan.UserID)
		return err
	})
	g.Go(func() error {
		_, err := s.books.FetchBook(gctx, loan.BookID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.collaboratorErr("ExtendLoan", err)
	}

	originalDue := loan.DueDate
	loan.DueDate = loan.DueDate.AddDate(0, 0, extensionDays)
	loan.ExtensionsCount++
	if err := s.loans.Update(ctx, loan); err != nil {
		s.log.Error("failed to persist extension", "loan_id", loanID, "error", err)
		return nil, apperrors.NewPersistenceError("ExtendLoan", err)
	}

	s.log.Info("loan extended", "loan_id", loanID, "days", extensionDays,
		"due_date", loan.DueDate, "extensions_count", loan.ExtensionsCount)

	return &ExtensionResult{
		ID:              loan.ID,
		UserID:          loan.UserID,
		BookID:          loan.BookID,
		IssueDate:       loan.IssueDate,
		OriginalDueDate: originalDue,
		ExtendedDueDate: loan.DueDate,
		Status:          loan.Status,
		ExtensionsCount: loan.ExtensionsCount,
	}, nil
}

// ─── Details ──────────────────────────────────────────────────────────────────

// GetLoanDetails loads the loan and joins concurrently fetched user and book
// snapshots. All-or-nothing: any collaborator failure fails the whole view,
// there is no partial/degraded response here.
func (s *loanService) GetLoanDetails(ctx context.Context, loanID uuid.UUID) (*LoanDetails, error) {
	loan, err := s.loadLoan(ctx, loanID, "GetLoanDetails")
	if err != nil {
		return nil, err
	}

	var (
		user *models.UserSnapshot
		book *models.BookSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.users.FetchUser(gctx, loan.UserID)
		user = u
		return err
	})
	g.Go(func() error {
		b, err := s.books.FetchBook(gctx, loan.BookID)
		book = b
		return err
	})
	if err := g.Wait(); err != nil {
		if _, ok := apperrors.AsDependencyError(err); ok {
			s.log.Warn("collaborator unavailable for loan details", "loan_id", loanID, "error", err)
			return nil, apperrors.ErrServiceUnavailable
		}
		return nil, err
	}

	return &LoanDetails{
		ID:         loan.ID,
		User:       UserRef{ID: loan.UserID, Name: user.Name, Email: user.Email},
		Book:       BookRef{ID: loan.BookID, Title: book.Title, Author: book.Author},
		IssueDate:  loan.IssueDate,
		DueDate:    loan.DueDate,
		ReturnDate: loan.ReturnDate,
		Status:     loan.Status,
	}, nil
}

// ─── History ──────────────────────────────────────────────────────────────────

// GetUserLoanHistory validates the user, then returns all of the user's loans
// enriched with book snapshots. This is the one deliberately degradable read:
// a failed book lookup leaves that entry's title/author blank instead of
// failing the whole history.
func (s *loanService) GetUserLoanHistory(ctx context.Context, userID uuid.UUID) (*UserLoanHistory, error) {
	if _, err := s.users.FetchUser(ctx, userID); err != nil {
		return nil, s.collaboratorErr("GetUserLoanHistory", err)
	}

	loans, err := s.loans.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("GetUserLoanHistory", err)
	}

	entries := make([]HistoryEntry, len(loans))
	g, gctx := errgroup.WithContext(ctx)
	for i, loan := range loans {
		i, loan := i, loan
		entries[i] = HistoryEntry{
			ID:         loan.ID,
			Book:       BookRef{ID: loan.BookID},
			IssueDate:  loan.IssueDate,
			DueDate:    loan.DueDate,
			ReturnDate: loan.ReturnDate,
			Status:     loan.Status,
		}
		g.Go(func() error {
			book, err := s.books.FetchBook(gctx, loan.BookID)
			if err != nil {
				s.log.Debug("book lookup failed for history entry, leaving fields blank",
					"loan_id", loan.ID, "book_id", loan.BookID, "error", err)
				return nil
			}
			entries[i].Book.Title = book.Title
			entries[i].Book.Author = book.Author
			return nil
		})
	}
	_ = g.Wait()

	return &UserLoanHistory{Loans: entries, Total: len(entries)}, nil
}

// ─── Overdue ──────────────────────────────────────────────────────────────────

// GetOverdueLoans lists active loans whose due date is strictly before now,
// enriched with user and book snapshots fetched concurrently. days_overdue is
// the ceiling of elapsed whole days, never below 1.
func (s *loanService) GetOverdueLoans(ctx context.Context) ([]OverdueLoan, error) {
	now := s.now().UTC()
	loans, err := s.loans.ListOverdue(ctx, now)
	if err != nil {
		return nil, apperrors.NewPersistenceError("GetOverdueLoans", err)
	}

	results := make([]OverdueLoan, len(loans))
	g, gctx := errgroup.WithContext(ctx)
	for i, loan := range loans {
		i, loan := i, loan
		results[i] = OverdueLoan{
			ID:          loan.ID,
			User:        UserRef{ID: loan.UserID},
			Book:        BookRef{ID: loan.BookID},
			IssueDate:   loan.IssueDate,
			DueDate:     loan.DueDate,
			DaysOverdue: daysOverdue(loan.DueDate, now),
		}
		g.Go(func() error {
			user, err := s.users.FetchUser(gctx, loan.UserID)
			if err != nil {
				if apperrors.IsNotFound(err) {
					return nil
				}
				return err
			}
			results[i].User.Name = user.Name
			results[i].User.Email = user.Email
			return nil
		})
		g.Go(func() error {
			book, err := s.books.FetchBook(gctx, loan.BookID)
			if err != nil {
				if apperrors.IsNotFound(err) {
					return nil
				}
				return err
			}
			results[i].Book.Title = book.Title
			results[i].Book.Author = book.Author
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if _, ok := apperrors.AsDependencyError(err); ok {
			s.log.Warn("collaborator unavailable while listing overdue loans", "error", err)
			return nil, apperrors.ErrServiceUnavailable
		}
		return nil, err
	}

	return results, nil
}

// ─── Internal Helpers ─────────────────────────────────────────────────────────

func (s *loanService) loadLoan(ctx context.Context, loanID uuid.UUID, op string) (*models.Loan, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("loan", loanID.String())
		}
		s.log.Error("failed to load loan", "op", op, "loan_id", loanID, "error", err)
		return nil, apperrors.NewPersistenceError(op, err)
	}
	return loan, nil
}

// collaboratorErr translates dependency failures before they leave the
// orchestrator: CIRCUIT_OPEN and TIMEOUT collapse into the uniform
// retry-later ErrServiceUnavailable; NotFound and REMOTE_ERROR pass through.
func (s *loanService) collaboratorErr(op string, err error) error {
	dep, ok := apperrors.AsDependencyError(err)
	if !ok {
		return err
	}
	switch dep.Kind {
	case apperrors.KindCircuitOpen, apperrors.KindTimeout:
		s.log.Warn("collaborator unavailable", "op", op, "dependency", dep.Dependency, "kind", string(dep.Kind))
		return apperrors.ErrServiceUnavailable
	default:
		s.log.Error("collaborator call failed", "op", op, "dependency", dep.Dependency, "error", err)
		return err
	}
}

// daysOverdue is the ceiling of whole elapsed days, floored at 1 so a loan
// one minute past due still reads as one day overdue.
func daysOverdue(dueDate, now time.Time) int {
	days := int(math.Ceil(now.Sub(dueDate).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

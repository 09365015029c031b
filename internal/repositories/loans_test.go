package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"loanservice/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Loan{}))
	return db
}

func activeLoan(userID, bookID uuid.UUID, issue time.Time, dueInDays int) *models.Loan {
	return &models.Loan{
		UserID:    userID,
		BookID:    bookID,
		IssueDate: issue,
		DueDate:   issue.AddDate(0, 0, dueInDays),
		Status:    models.LoanStatusActive,
	}
}

func TestCreateAssignsIDAndRoundTrips(t *testing.T) {
	repo := NewLoanRepository(newTestDB(t))
	ctx := context.Background()
	issue := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	loan := activeLoan(uuid.New(), uuid.New(), issue, 14)
	require.NoError(t, repo.Create(ctx, loan))
	require.NotEqual(t, uuid.Nil, loan.ID)

	got, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.UserID, got.UserID)
	assert.Equal(t, loan.BookID, got.BookID)
	assert.Equal(t, models.LoanStatusActive, got.Status)
	assert.Nil(t, got.ReturnDate)
	assert.Equal(t, 0, got.ExtensionsCount)
	assert.True(t, loan.DueDate.Equal(got.DueDate))
}

func TestGetByIDMissingLoan(t *testing.T) {
	repo := NewLoanRepository(newTestDB(t))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListByUserFiltersAndOrders(t *testing.T) {
	repo := NewLoanRepository(newTestDB(t))
	ctx := context.Background()
	userID, otherUser := uuid.New(), uuid.New()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	second := activeLoan(userID, uuid.New(), base.AddDate(0, 0, 2), 14)
	first := activeLoan(userID, uuid.New(), base, 14)
	foreign := activeLoan(otherUser, uuid.New(), base, 14)
	for _, l := range []*models.Loan{second, first, foreign} {
		require.NoError(t, repo.Create(ctx, l))
	}

	loans, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, first.ID, loans[0].ID, "ordered by issue_date ascending")
	assert.Equal(t, second.ID, loans[1].ID)
}

func TestListOverdueFiltersStatusAndDueDate(t *testing.T) {
	repo := NewLoanRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	asOf := base.AddDate(0, 0, 10)

	overdue := activeLoan(uuid.New(), uuid.New(), base, 7)
	notYetDue := activeLoan(uuid.New(), uuid.New(), base, 30)
	returned := activeLoan(uuid.New(), uuid.New(), base, 7)
	returned.Status = models.LoanStatusReturned
	returnedAt := base.AddDate(0, 0, 5)
	returned.ReturnDate = &returnedAt

	for _, l := range []*models.Loan{overdue, notYetDue, returned} {
		require.NoError(t, repo.Create(ctx, l))
	}

	loans, err := repo.ListOverdue(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, overdue.ID, loans[0].ID)
}

func TestListOverdueExcludesDueExactlyNow(t *testing.T) {
	repo := NewLoanRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	loan := activeLoan(uuid.New(), uuid.New(), base, 7)
	require.NoError(t, repo.Create(ctx, loan))

	// due_date must be strictly before the evaluation instant.
	loans, err := repo.ListOverdue(ctx, loan.DueDate)
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func TestUpdatePersistsMutations(t *testing.T) {
	repo := NewLoanRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	loan := activeLoan(uuid.New(), uuid.New(), base, 7)
	require.NoError(t, repo.Create(ctx, loan))

	loan.DueDate = loan.DueDate.AddDate(0, 0, 3)
	loan.ExtensionsCount = 1
	require.NoError(t, repo.Update(ctx, loan))

	returnedAt := base.AddDate(0, 0, 9)
	loan.Status = models.LoanStatusReturned
	loan.ReturnDate = &returnedAt
	require.NoError(t, repo.Update(ctx, loan))

	got, err := repo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, got.Status)
	assert.Equal(t, 1, got.ExtensionsCount)
	require.NotNil(t, got.ReturnDate)
	assert.True(t, returnedAt.Equal(*got.ReturnDate))
	assert.True(t, base.AddDate(0, 0, 10).Equal(got.DueDate))
}
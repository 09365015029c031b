package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"loanservice/internal/apperrors"
	"loanservice/internal/logger"
	"loanservice/internal/services"
)

type LoanHandler struct {
	log *logger.Logger
	svc services.LoanService
}

func RegisterRoutes(r *gin.Engine, svc services.LoanService, log *logger.Logger) {
	h := &LoanHandler{log: log.With("handler", "LoanHandler"), svc: svc}

	r.GET("/health", healthCheck)

	api := r.Group("/api")
	{
		api.POST("/loans", h.createLoan)
		api.POST("/returns", h.returnLoan)
		api.GET("/loans/overdue", h.getOverdueLoans)
		api.GET("/loans/user/:user_id", h.getUserLoanHistory)
		api.GET("/loans/:id", h.getLoanDetails)
		api.PUT("/loans/:id/extend", h.extendLoan)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "loan-service is running"})
}

// ─── Requests ─────────────────────────────────────────────────────────────────

type createLoanRequest struct {
	UserID  string    `json:"user_id" binding:"required,uuid"`
	BookID  string    `json:"book_id" binding:"required,uuid"`
	DueDate time.Time `json:"due_date" binding:"required"`
}

type returnLoanRequest struct {
	LoanID string `json:"loan_id" binding:"required,uuid"`
}

type extendLoanRequest struct {
	ExtensionDays int `json:"extension_days" binding:"required,min=1"`
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

func (h *LoanHandler) createLoan(c *gin.Context) {
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, _ := uuid.Parse(req.UserID)
	bookID, _ := uuid.Parse(req.BookID)

	loan, err := h.svc.CreateLoan(c.Request.Context(), userID, bookID, req.DueDate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

func (h *LoanHandler) returnLoan(c *gin.Context) {
	var req returnLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	loanID, _ := uuid.Parse(req.LoanID)

	loan, err := h.svc.ReturnLoan(c.Request.Context(), loanID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func (h *LoanHandler) extendLoan(c *gin.Context) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan id"})
		return
	}
	var req extendLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.ExtendLoan(c.Request.Context(), loanID, req.ExtensionDays)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *LoanHandler) getLoanDetails(c *gin.Context) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan id"})
		return
	}

	details, err := h.svc.GetLoanDetails(c.Request.Context(), loanID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *LoanHandler) getUserLoanHistory(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	history, err := h.svc.GetUserLoanHistory(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *LoanHandler) getOverdueLoans(c *gin.Context) {
	overdue, err := h.svc.GetOverdueLoans(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overdue)
}

// ─── Error Mapping ────────────────────────────────────────────────────────────

// respondError maps the closed error-variant set onto transport statuses.
// Business logic never sees HTTP codes; this is the only place the two meet.
func (h *LoanHandler) respondError(c *gin.Context, err error) {
	var (
		nf *apperrors.NotFoundError
		cf *apperrors.ConflictError
	)
	switch {
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.As(err, &cf):
		c.JSON(http.StatusConflict, gin.H{"error": cf.Message, "code": cf.Reason})
	case errors.Is(err, apperrors.ErrServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
	default:
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

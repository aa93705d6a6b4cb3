package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	recurringdomain "github.com/smallbiznis/fatura/internal/recurring/domain"
)

type createRecurringTransactionRequest struct {
	AccountID   string          `json:"account_id"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  string          `json:"category_id"`
	DayOfMonth  int             `json:"day_of_month"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
}

type createRecurringCardPurchaseRequest struct {
	CardID            string          `json:"card_id"`
	Description       string          `json:"description"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	InstallmentsTotal int             `json:"installments_total"`
	CategoryID        string          `json:"category_id"`
	DayOfMonth        int             `json:"day_of_month"`
	StartDate         string          `json:"start_date"`
	EndDate           string          `json:"end_date"`
}

// updateRecurringRequest covers both template kinds; fields a kind does
// not have are ignored.
type updateRecurringRequest struct {
	Description       *string          `json:"description"`
	Amount            *decimal.Decimal `json:"amount"`
	TotalAmount       *decimal.Decimal `json:"total_amount"`
	InstallmentsTotal *int             `json:"installments_total"`
	CategoryID        *string          `json:"category_id"`
	DayOfMonth        *int             `json:"day_of_month"`
	NextDate          *string          `json:"next_date"`
	Active            *bool            `json:"active"`
	EndDate           *string          `json:"end_date"`
	ClearEnd          bool             `json:"clear_end"`
}

type recurringUpdateFields struct {
	categoryID *snowflake.ID
	nextDate   *time.Time
	endDate    *time.Time
}

func (s *Server) bindRecurringUpdate(c *gin.Context) (snowflake.ID, updateRecurringRequest, recurringUpdateFields, bool) {
	var (
		req    updateRecurringRequest
		fields recurringUpdateFields
	)
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return 0, req, fields, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return 0, req, fields, false
	}
	if req.CategoryID != nil {
		if fields.categoryID, err = requiredBodyIDPtr("category_id", *req.CategoryID); err != nil {
			AbortWithError(c, err)
			return 0, req, fields, false
		}
	}
	if req.NextDate != nil {
		if fields.nextDate, err = parseDate("next_date", *req.NextDate); err != nil {
			AbortWithError(c, err)
			return 0, req, fields, false
		}
	}
	if req.EndDate != nil {
		if fields.endDate, err = parseDate("end_date", *req.EndDate); err != nil {
			AbortWithError(c, err)
			return 0, req, fields, false
		}
	}
	return id, req, fields, true
}

func (s *Server) CreateRecurringTransaction(c *gin.Context) {
	var req createRecurringTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	accountID, err := requiredBodyID("account_id", req.AccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	categoryID, err := bodyID("category_id", req.CategoryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	endDate, err := parseDate("end_date", req.EndDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	template, err := s.recurringSvc.CreateTransaction(c.Request.Context(), callerID(c), recurringdomain.CreateRecurringTransactionRequest{
		AccountID:   accountID,
		Type:        transactionType(req.Type),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		CategoryID:  categoryID,
		DayOfMonth:  req.DayOfMonth,
		StartDate:   derefDate(startDate),
		EndDate:     endDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": template})
}

func (s *Server) ListRecurringTransactions(c *gin.Context) {
	items, err := s.recurringSvc.ListTransactions(c.Request.Context(), callerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetRecurringTransaction(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	template, err := s.recurringSvc.GetTransaction(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": template})
}

func (s *Server) UpdateRecurringTransaction(c *gin.Context) {
	id, req, fields, ok := s.bindRecurringUpdate(c)
	if !ok {
		return
	}

	template, err := s.recurringSvc.UpdateTransaction(c.Request.Context(), callerID(c), id, recurringdomain.UpdateRecurringTransactionRequest{
		Description: req.Description,
		Amount:      req.Amount,
		CategoryID:  fields.categoryID,
		DayOfMonth:  req.DayOfMonth,
		NextDate:    fields.nextDate,
		Active:      req.Active,
		EndDate:     fields.endDate,
		ClearEnd:    req.ClearEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": template})
}

func (s *Server) DeleteRecurringTransaction(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.recurringSvc.DeleteTransaction(c.Request.Context(), callerID(c), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GenerateRecurringTransaction(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.recurringSvc.GenerateTransaction(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result, "generated": result.Generated()})
}

func (s *Server) CreateRecurringCardPurchase(c *gin.Context) {
	var req createRecurringCardPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	cardID, err := requiredBodyID("card_id", req.CardID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	categoryID, err := bodyID("category_id", req.CategoryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	endDate, err := parseDate("end_date", req.EndDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	template, err := s.recurringSvc.CreateCardPurchase(c.Request.Context(), callerID(c), recurringdomain.CreateRecurringCardPurchaseRequest{
		CardID:            cardID,
		Description:       strings.TrimSpace(req.Description),
		TotalAmount:       req.TotalAmount,
		InstallmentsTotal: req.InstallmentsTotal,
		CategoryID:        categoryID,
		DayOfMonth:        req.DayOfMonth,
		StartDate:         derefDate(startDate),
		EndDate:           endDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": template})
}

func (s *Server) ListRecurringCardPurchases(c *gin.Context) {
	items, err := s.recurringSvc.ListCardPurchases(c.Request.Context(), callerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetRecurringCardPurchase(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	template, err := s.recurringSvc.GetCardPurchase(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": template})
}

func (s *Server) UpdateRecurringCardPurchase(c *gin.Context) {
	id, req, fields, ok := s.bindRecurringUpdate(c)
	if !ok {
		return
	}

	template, err := s.recurringSvc.UpdateCardPurchase(c.Request.Context(), callerID(c), id, recurringdomain.UpdateRecurringCardPurchaseRequest{
		Description:       req.Description,
		TotalAmount:       req.TotalAmount,
		InstallmentsTotal: req.InstallmentsTotal,
		CategoryID:        fields.categoryID,
		DayOfMonth:        req.DayOfMonth,
		NextDate:          fields.nextDate,
		Active:            req.Active,
		EndDate:           fields.endDate,
		ClearEnd:          req.ClearEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": template})
}

func (s *Server) DeleteRecurringCardPurchase(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.recurringSvc.DeleteCardPurchase(c.Request.Context(), callerID(c), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GenerateRecurringCardPurchase(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.recurringSvc.GenerateCardPurchase(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result, "generated": result.Generated()})
}

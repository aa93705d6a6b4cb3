package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
	"github.com/smallbiznis/fatura/pkg/db/pagination"
)

type createTransactionRequest struct {
	AccountID   string          `json:"account_id"`
	Type        string          `json:"type"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  string          `json:"category_id"`
	TagIDs      []string        `json:"tag_ids"`
	Reconciled  bool            `json:"reconciled"`
}

type updateTransactionRequest struct {
	AccountID   *string          `json:"account_id"`
	Type        *string          `json:"type"`
	Date        *string          `json:"date"`
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
	CategoryID  *string          `json:"category_id"`
	TagIDs      *[]string        `json:"tag_ids"`
}

type createTransferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Date          string          `json:"date"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
}

type listTransactionsQuery struct {
	pagination.Pagination
	AccountID  string `form:"account_id"`
	CategoryID string `form:"category_id"`
	Type       string `form:"type"`
	From       string `form:"from"`
	To         string `form:"to"`
	Reconciled string `form:"reconciled"`
}

func transactionType(value string) accountdomain.TransactionType {
	return accountdomain.TransactionType(strings.ToUpper(strings.TrimSpace(value)))
}

func (s *Server) CreateTransaction(c *gin.Context) {
	var req createTransactionRequest
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
	tagIDs, err := bodyIDs("tag_ids", req.TagIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	transaction, err := s.accountSvc.CreateTransaction(c.Request.Context(), callerID(c), accountdomain.CreateTransactionRequest{
		AccountID:   accountID,
		Type:        transactionType(req.Type),
		Date:        derefDate(date),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		CategoryID:  categoryID,
		TagIDs:      tagIDs,
		Reconciled:  req.Reconciled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": transaction})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query listTransactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, err := parseOptionalSnowflakeID(query.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account_id"))
		return
	}
	categoryID, err := parseOptionalSnowflakeID(query.CategoryID)
	if err != nil {
		AbortWithError(c, newValidationError("category_id", "invalid_category_id", "invalid category_id"))
		return
	}
	from, err := parseOptionalTime(query.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(query.To, false)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}
	reconciled, err := parseOptionalBool(query.Reconciled)
	if err != nil {
		AbortWithError(c, newValidationError("reconciled", "invalid_reconciled", "invalid reconciled"))
		return
	}

	resp, err := s.accountSvc.ListTransactions(c.Request.Context(), callerID(c), accountdomain.ListTransactionRequest{
		Pagination: query.Pagination,
		AccountID:  accountID,
		CategoryID: categoryID,
		Type:       transactionType(query.Type),
		From:       from,
		To:         to,
		Reconciled: reconciled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Transactions, "page_info": resp.PageInfo})
}

func (s *Server) GetTransaction(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	transaction, err := s.accountSvc.GetTransaction(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transaction})
}

func (s *Server) UpdateTransaction(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req updateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := accountdomain.UpdateTransactionRequest{
		Description: req.Description,
		Amount:      req.Amount,
	}
	if req.AccountID != nil {
		if update.AccountID, err = requiredBodyIDPtr("account_id", *req.AccountID); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	if req.CategoryID != nil {
		if update.CategoryID, err = requiredBodyIDPtr("category_id", *req.CategoryID); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	if req.Type != nil {
		txType := transactionType(*req.Type)
		update.Type = &txType
	}
	if req.Date != nil {
		if update.Date, err = parseDate("date", *req.Date); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	if req.TagIDs != nil {
		tagIDs, err := bodyIDs("tag_ids", *req.TagIDs)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		update.TagIDs = &tagIDs
	}

	transaction, err := s.accountSvc.UpdateTransaction(c.Request.Context(), callerID(c), id, update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transaction})
}

func (s *Server) DeleteTransaction(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.accountSvc.DeleteTransaction(c.Request.Context(), callerID(c), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ToggleReconciled(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	transaction, err := s.accountSvc.ToggleReconciled(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transaction})
}

func (s *Server) CreateTransfer(c *gin.Context) {
	var req createTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	fromID, err := requiredBodyID("from_account_id", req.FromAccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	toID, err := requiredBodyID("to_account_id", req.ToAccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	transfer, err := s.accountSvc.CreateTransfer(c.Request.Context(), callerID(c), accountdomain.CreateTransferRequest{
		FromAccountID: fromID,
		ToAccountID:   toID,
		Date:          derefDate(date),
		Description:   strings.TrimSpace(req.Description),
		Amount:        req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": transfer})
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	chargedomain "github.com/smallbiznis/fatura/internal/charge/domain"
)

type createPurchaseRequest struct {
	CardID       string          `json:"card_id"`
	Date         string          `json:"date"`
	Description  string          `json:"description"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Installments int             `json:"installments"`
	CategoryID   string          `json:"category_id"`
	TagIDs       []string        `json:"tag_ids"`
}

type updateChargeRequest struct {
	Date        *string          `json:"date"`
	Description *string          `json:"description"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
	CategoryID  *string          `json:"category_id"`
	TagIDs      *[]string        `json:"tag_ids"`
}

func (s *Server) CreatePurchase(c *gin.Context) {
	var req createPurchaseRequest
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

	purchase, err := s.chargeSvc.Purchase(c.Request.Context(), callerID(c), chargedomain.PurchaseRequest{
		CardID:       cardID,
		Date:         derefDate(date),
		Description:  strings.TrimSpace(req.Description),
		TotalAmount:  req.TotalAmount,
		Installments: req.Installments,
		CategoryID:   categoryID,
		TagIDs:       tagIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": purchase})
}

func (s *Server) ListCharges(c *gin.Context) {
	var (
		req chargedomain.ListChargeRequest
		err error
	)
	if req.CardID, err = parseOptionalSnowflakeID(c.Query("card_id")); err != nil {
		AbortWithError(c, newValidationError("card_id", "invalid_card_id", "invalid card_id"))
		return
	}
	if req.InvoiceID, err = parseOptionalSnowflakeID(c.Query("invoice_id")); err != nil {
		AbortWithError(c, newValidationError("invoice_id", "invalid_invoice_id", "invalid invoice_id"))
		return
	}
	if req.PurchaseID, err = parseOptionalSnowflakeID(c.Query("purchase_id")); err != nil {
		AbortWithError(c, newValidationError("purchase_id", "invalid_purchase_id", "invalid purchase_id"))
		return
	}

	charges, err := s.chargeSvc.List(c.Request.Context(), callerID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": charges})
}

func (s *Server) GetCharge(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	charge, err := s.chargeSvc.Get(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": charge})
}

func (s *Server) UpdateCharge(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req updateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := chargedomain.UpdateChargeRequest{
		Description: req.Description,
		TotalAmount: req.TotalAmount,
	}
	if req.Date != nil {
		if update.Date, err = parseDate("date", *req.Date); err != nil {
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
	if req.TagIDs != nil {
		tagIDs, err := bodyIDs("tag_ids", *req.TagIDs)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		update.TagIDs = &tagIDs
	}

	charge, err := s.chargeSvc.Update(c.Request.Context(), callerID(c), id, update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": charge})
}

func (s *Server) DeleteCharge(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.chargeSvc.Delete(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

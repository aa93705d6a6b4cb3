package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/fatura/internal/payment/domain"
)

type createPaymentRequest struct {
	AccountID string          `json:"account_id"`
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      string          `json:"kind"`
}

type updatePaymentRequest struct {
	AccountID *string          `json:"account_id"`
	Date      *string          `json:"date"`
	Amount    *decimal.Decimal `json:"amount"`
	Kind      *string          `json:"kind"`
}

func paymentKind(value string) paymentdomain.PaymentKind {
	return paymentdomain.PaymentKind(strings.ToUpper(strings.TrimSpace(value)))
}

func (s *Server) CreatePayment(c *gin.Context) {
	invoiceID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	accountID, err := bodyID("account_id", req.AccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.paymentSvc.Pay(c.Request.Context(), callerID(c), paymentdomain.PayRequest{
		InvoiceID: invoiceID,
		AccountID: accountID,
		Date:      derefDate(date),
		Amount:    req.Amount,
		Kind:      paymentKind(req.Kind),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) ListPayments(c *gin.Context) {
	invoiceID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payments, err := s.paymentSvc.List(c.Request.Context(), callerID(c), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := s.paymentSvc.Get(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) UpdatePayment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := paymentdomain.UpdatePaymentRequest{Amount: req.Amount}
	if req.AccountID != nil {
		if update.AccountID, err = requiredBodyIDPtr("account_id", *req.AccountID); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	if req.Date != nil {
		if update.Date, err = parseDate("date", *req.Date); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	if req.Kind != nil {
		kind := paymentKind(*req.Kind)
		update.Kind = &kind
	}

	result, err := s.paymentSvc.Update(c.Request.Context(), callerID(c), id, update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) DeletePayment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.paymentSvc.Delete(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	carddomain "github.com/smallbiznis/fatura/internal/card/domain"
)

type createCardRequest struct {
	Name       string          `json:"name"`
	Brand      string          `json:"brand"`
	Limit      decimal.Decimal `json:"limit"`
	ClosingDay int             `json:"closing_day"`
	DueDay     int             `json:"due_day"`
}

type updateCardRequest struct {
	Name       *string          `json:"name"`
	Brand      *string          `json:"brand"`
	Limit      *decimal.Decimal `json:"limit"`
	ClosingDay *int             `json:"closing_day"`
	DueDay     *int             `json:"due_day"`
	Active     *bool            `json:"active"`
}

func (s *Server) CreateCard(c *gin.Context) {
	var req createCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	card, err := s.cardSvc.Create(c.Request.Context(), callerID(c), carddomain.CreateCardRequest{
		Name:       strings.TrimSpace(req.Name),
		Brand:      strings.TrimSpace(req.Brand),
		Limit:      req.Limit,
		ClosingDay: req.ClosingDay,
		DueDay:     req.DueDay,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": card})
}

func (s *Server) ListCards(c *gin.Context) {
	cards, err := s.cardSvc.List(c.Request.Context(), callerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cards})
}

func (s *Server) GetCard(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	card, err := s.cardSvc.Get(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": card})
}

func (s *Server) UpdateCard(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req updateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	card, err := s.cardSvc.Update(c.Request.Context(), callerID(c), id, carddomain.UpdateCardRequest{
		Name:       req.Name,
		Brand:      req.Brand,
		Limit:      req.Limit,
		ClosingDay: req.ClosingDay,
		DueDay:     req.DueDay,
		Active:     req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": card})
}

func (s *Server) DeleteCard(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.cardSvc.Delete(c.Request.Context(), callerID(c), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/fatura/internal/account/domain"
)

type createCategoryRequest struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	ParentID string `json:"parent_id"`
}

type updateCategoryRequest struct {
	Name        *string `json:"name"`
	Kind        *string `json:"kind"`
	ParentID    *string `json:"parent_id"`
	ClearParent bool    `json:"clear_parent"`
}

type createTagRequest struct {
	Name string `json:"name"`
}

func (s *Server) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	parentID, err := bodyID("parent_id", req.ParentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	category, err := s.accountSvc.CreateCategory(c.Request.Context(), callerID(c), accountdomain.CreateCategoryRequest{
		Name:     strings.TrimSpace(req.Name),
		Kind:     accountdomain.CategoryKind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		ParentID: parentID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": category})
}

func (s *Server) ListCategories(c *gin.Context) {
	categories, err := s.accountSvc.ListCategories(c.Request.Context(), callerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": categories})
}

func (s *Server) GetCategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	category, err := s.accountSvc.GetCategory(c.Request.Context(), callerID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": category})
}

func (s *Server) UpdateCategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req updateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := accountdomain.UpdateCategoryRequest{
		Name:        req.Name,
		ClearParent: req.ClearParent,
	}
	if req.Kind != nil {
		kind := accountdomain.CategoryKind(strings.ToUpper(strings.TrimSpace(*req.Kind)))
		update.Kind = &kind
	}
	if req.ParentID != nil {
		if update.ParentID, err = requiredBodyIDPtr("parent_id", *req.ParentID); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	category, err := s.accountSvc.UpdateCategory(c.Request.Context(), callerID(c), id, update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": category})
}

func (s *Server) DeleteCategory(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.accountSvc.DeleteCategory(c.Request.Context(), callerID(c), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) CreateTag(c *gin.Context) {
	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tag, err := s.accountSvc.CreateTag(c.Request.Context(), callerID(c), accountdomain.CreateTagRequest{
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": tag})
}

func (s *Server) ListTags(c *gin.Context) {
	tags, err := s.accountSvc.ListTags(c.Request.Context(), callerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tags})
}

func (s *Server) DeleteTag(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.accountSvc.DeleteTag(c.Request.Context(), callerID(c), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

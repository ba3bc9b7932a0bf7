// Package api exposes the frozen schema registry over HTTP.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vellum-cms/vellum/internal/schema"
)

// Service serves read-only model metadata and dry-run validation of document data.
type Service struct {
	registry  *schema.Registry
	validator *schema.Validator
}

func NewService(reg *schema.Registry, val *schema.Validator) *Service {
	if reg == nil || val == nil {
		panic("schema api: registry and validator are required")
	}
	return &Service{registry: reg, validator: val}
}

func (s *Service) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/v1/schemas")
	g.GET("", s.listModels)
	g.GET("/:uid", s.getModel)
	g.POST("/:uid/validate", s.validateData)
}

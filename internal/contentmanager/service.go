// Package contentmanager is the administrative REST surface over documents, relations
// and history versions.
package contentmanager

import (
	"github.com/gin-gonic/gin"

	"github.com/vellum-cms/vellum/internal/document"
	"github.com/vellum-cms/vellum/internal/history"
	"github.com/vellum-cms/vellum/internal/relation"
	"github.com/vellum-cms/vellum/internal/schema"
)

// Prefix is the route group every content-manager route is mounted under.
const Prefix = "/content-manager"

type Option func(*Service)

// WithPermissions installs the permission checker consulted by read routes.
func WithPermissions(p PermissionChecker) Option {
	return func(s *Service) { s.permissions = p }
}

// WithMutationMiddleware runs handlers in front of every POST route.
func WithMutationMiddleware(handlers ...gin.HandlerFunc) Option {
	return func(s *Service) { s.mutations = append(s.mutations, handlers...) }
}

// WithMaxBodySize bounds request bodies. Values <= 0 keep the 1MB default.
func WithMaxBodySize(mb int) Option {
	return func(s *Service) {
		if mb > 0 {
			s.maxBodySizeBytes = int64(mb) * 1024 * 1024
		}
	}
}

type Service struct {
	registry         *schema.Registry
	documents        *document.Service
	relations        *relation.Engine
	history          *history.Service
	permissions      PermissionChecker
	mutations        []gin.HandlerFunc
	maxBodySizeBytes int64
	populateLimit    int
}

func NewService(reg *schema.Registry, docs *document.Service, rel *relation.Engine, hist *history.Service, populateLimit int, opts ...Option) *Service {
	if reg == nil {
		panic("contentmanager: registry must not be nil")
	}
	if docs == nil {
		panic("contentmanager: document service must not be nil")
	}
	if rel == nil {
		panic("contentmanager: relation engine must not be nil")
	}
	if hist == nil {
		panic("contentmanager: history service must not be nil")
	}
	s := &Service{
		registry:         reg,
		documents:        docs,
		relations:        rel,
		history:          hist,
		permissions:      AllowAll{},
		maxBodySizeBytes: 1024 * 1024,
		populateLimit:    populateLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRoutes registers the content-manager routes under Prefix.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	cm := r.Group(Prefix)

	post := func(path string, h gin.HandlerFunc) {
		cm.POST(path, append(append([]gin.HandlerFunc{}, s.mutations...), h)...)
	}

	relations := cm.Group("/relations")
	{
		relations.GET("/:uid/:id/:field", s.FindExistingHandler)
	}

	collections := cm.Group("/collection-types")
	{
		collections.GET("/:uid", s.FindHandler)
		collections.GET("/:uid/:id", s.FindOneHandler)
		collections.PUT("/:uid/:id", s.UpdateHandler)
		collections.DELETE("/:uid/:id", s.DeleteHandler)
	}
	post("/collection-types/:uid", s.CreateHandler)
	post("/collection-types/:uid/:id/actions/:action", s.ActionHandler)

	singles := cm.Group("/single-types")
	{
		singles.GET("/:uid", s.FindOneHandler)
		singles.PUT("/:uid", s.UpsertSingleHandler)
		singles.DELETE("/:uid", s.DeleteHandler)
		singles.GET("/:uid/relations/:field", s.FindExistingHandler)
	}
	post("/single-types/:uid/actions/:action", s.ActionHandler)

	cm.GET("/history-versions", s.FindVersionsHandler)
}

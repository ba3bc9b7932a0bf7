// Package graphql serves a GraphQL API generated from the schema registry.
package graphql

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	gql "github.com/graphql-go/graphql"
	"golang.org/x/sync/singleflight"

	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/document"
	"github.com/vellum-cms/vellum/internal/relation"
	"github.com/vellum-cms/vellum/internal/schema"
)

// DefaultPath is where the endpoint is mounted when no path is configured.
const DefaultPath = "/graphql"

type Service struct {
	registry *schema.Registry
	docs     *document.Service
	engine   *relation.Engine

	group  singleflight.Group
	schema atomic.Pointer[gql.Schema]
}

func NewService(reg *schema.Registry, docs *document.Service, engine *relation.Engine) *Service {
	if reg == nil {
		panic("graphql: registry must not be nil")
	}
	if docs == nil {
		panic("graphql: document service must not be nil")
	}
	if engine == nil {
		panic("graphql: relation engine must not be nil")
	}
	return &Service{registry: reg, docs: docs, engine: engine}
}

// Schema returns the generated schema, building it on first use. Concurrent first
// callers share one build.
func (s *Service) Schema() (*gql.Schema, error) {
	if sch := s.schema.Load(); sch != nil {
		return sch, nil
	}
	v, err, _ := s.group.Do("schema", func() (interface{}, error) {
		if sch := s.schema.Load(); sch != nil {
			return sch, nil
		}
		sch, err := newBuilder(s.registry, s.docs, s.engine).build()
		if err != nil {
			return nil, err
		}
		s.schema.Store(sch)
		slog.Info("GraphQL schema built", "content_types", len(s.registry.ContentTypes()))
		return sch, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*gql.Schema), nil
}

// Request is a GraphQL-over-HTTP request body.
type Request struct {
	Query         string                 `json:"query" form:"query"`
	OperationName string                 `json:"operationName" form:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// RegisterRoutes mounts the endpoint at path for GET and POST.
func (s *Service) RegisterRoutes(r gin.IRouter, path string) {
	if path == "" {
		path = DefaultPath
	}
	r.POST(path, s.Handler)
	r.GET(path, s.Handler)
}

// Handler executes one GraphQL request. Resolver errors are reported in the result's
// errors list with status 200; malformed requests get the REST error envelope.
func (s *Service) Handler(c *gin.Context) {
	var req Request
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil || req.Query == "" {
		status, body := coreerrors.Envelope(coreerrors.BadRequest("A GraphQL query is required"))
		c.AbortWithStatusJSON(status, body)
		return
	}

	sch, err := s.Schema()
	if err != nil {
		slog.Error("GraphQL schema unavailable", "error", err)
		status, body := coreerrors.Envelope(err)
		c.AbortWithStatusJSON(status, body)
		return
	}

	result := gql.Do(gql.Params{
		Schema:         *sch,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        c.Request.Context(),
	})
	if result.HasErrors() {
		slog.Debug("GraphQL request returned errors", "errors", len(result.Errors))
	}
	c.JSON(http.StatusOK, result)
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/schema"
)

// SchemaResponse is the response body for a single model.
type SchemaResponse struct {
	UID         string              `json:"uid"`
	Kind        string              `json:"kind"`
	Info        schema.Info         `json:"info"`
	Localized   bool                `json:"localized"`
	MainField   string              `json:"mainField,omitempty"`
	Attributes  []*schema.Attribute `json:"attributes"`
	Fingerprint string              `json:"fingerprint"`
}

// getModel handles GET /v1/schemas/{uid}.
func (s *Service) getModel(c *gin.Context) {
	m, err := s.registry.Get(c.Param("uid"))
	if err != nil {
		abort(c, coreerrors.NotFound(""))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toResponse(m)})
}

// listModels handles GET /v1/schemas. An optional ?kind= filters by model kind.
func (s *Service) listModels(c *gin.Context) {
	kind := c.Query("kind")

	responses := make([]*SchemaResponse, 0)
	for _, m := range s.registry.List() {
		if kind != "" && string(m.Kind) != kind {
			continue
		}
		responses = append(responses, toResponse(m))
	}

	c.JSON(http.StatusOK, gin.H{"data": responses})
}

// validateData handles POST /v1/schemas/{uid}/validate (dry-run of document data).
func (s *Service) validateData(c *gin.Context) {
	m, err := s.registry.Get(c.Param("uid"))
	if err != nil || m.IsComponent() {
		abort(c, coreerrors.NotFound(""))
		return
	}

	var data map[string]interface{}
	if err := c.ShouldBindJSON(&data); err != nil {
		abort(c, coreerrors.BadRequest("Invalid JSON body"))
		return
	}

	if err := s.validator.Validate(m, data, schema.ValidateCreate); err != nil {
		var details map[string]interface{}
		var detailer schema.ValidationDetailer
		if errors.As(err, &detailer) {
			details = detailer.Details()
		}
		abort(c, coreerrors.Validation(err.Error(), details))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"valid": true, "uid": m.UID}})
}

func abort(c *gin.Context, err error) {
	status, body := coreerrors.Envelope(err)
	c.AbortWithStatusJSON(status, body)
}

func toResponse(m *schema.Model) *SchemaResponse {
	return &SchemaResponse{
		UID:         m.UID,
		Kind:        string(m.Kind),
		Info:        m.Info,
		Localized:   m.Localized,
		MainField:   m.MainField,
		Attributes:  m.Attributes,
		Fingerprint: m.Fingerprint(),
	}
}

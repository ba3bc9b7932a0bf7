package contentmanager

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vellum-cms/vellum/internal/document"
	"github.com/vellum-cms/vellum/internal/relation"
)

// FindExistingHandler handles GET /relations/{uid}/{id}/{field} and
// GET /single-types/{uid}/relations/{field}. When uid names a component, id is the
// storage id of the component instance.
func (s *Service) FindExistingHandler(c *gin.Context) {
	uid := c.Param("uid")
	q, err := s.readQuery(c, uid)
	if err != nil {
		abort(c, err)
		return
	}
	st, err := status(q)
	if err != nil {
		abort(c, err)
		return
	}
	p, err := page(q)
	if err != nil {
		abort(c, err)
		return
	}

	owner := relation.Owner{Ref: ref(c)}
	if s.isComponent(uid) {
		owner = relation.Owner{Ref: document.Ref{ContentType: uid}, ComponentID: owner.EntityID}
	}

	res, err := s.relations.FindExisting(c.Request.Context(), owner, c.Param("field"), relation.Options{
		ResolutionContext: relation.ResolutionContext{Status: st, Locale: q.Get("locale")},
		Pagination:        p,
		Search:            q.Get("_q"),
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Service) isComponent(uid string) bool {
	m, err := s.registry.Get(uid)
	return err == nil && m.IsComponent()
}

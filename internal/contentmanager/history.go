package contentmanager

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vellum-cms/vellum/internal/history"
)

// FindVersionsHandler handles GET /history-versions. The query is scoped by the
// permission checker before the reader sees it.
func (s *Service) FindVersionsHandler(c *gin.Context) {
	uid := c.Query("contentType")
	q, err := s.readQuery(c, uid)
	if err != nil {
		abort(c, err)
		return
	}
	p, err := page(q)
	if err != nil {
		abort(c, err)
		return
	}

	res, err := s.history.FindVersionsPage(c.Request.Context(), history.Query{
		ContentType: q.Get("contentType"),
		DocumentID:  q.Get("documentId"),
		Locale:      q.Get("locale"),
		Params:      p,
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": res.Results,
		"meta": gin.H{"pagination": res.Pagination},
	})
}

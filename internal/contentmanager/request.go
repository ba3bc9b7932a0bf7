package contentmanager

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/core/pagination"
	"github.com/vellum-cms/vellum/internal/document"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgBodyTooLarge   = "Request body exceeds maximum allowed size"
)

// errBodyTooLarge renders as 413 inside the regular envelope.
var errBodyTooLarge = &coreerrors.Error{
	Name:    coreerrors.NameBadRequest,
	Message: msgBodyTooLarge,
	Status:  http.StatusRequestEntityTooLarge,
}

// abort writes the error envelope. Errors without a client shape are logged since their
// message never leaves the process.
func abort(c *gin.Context, err error) {
	if _, ok := coreerrors.As(err); !ok {
		slog.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	status, body := coreerrors.Envelope(err)
	c.AbortWithStatusJSON(status, body)
}

// readQuery returns the request query after the permission checker has scoped it.
func (s *Service) readQuery(c *gin.Context, uid string) (url.Values, error) {
	if s.permissions.CannotRead(c.Request.Context(), uid) {
		return nil, coreerrors.Forbidden("")
	}
	return s.permissions.SanitizeQuery(c.Request.Context(), uid, c.Request.URL.Query())
}

// parseBody reads a JSON object body of at most maxBodySizeBytes.
func (s *Service) parseBody(c *gin.Context) (map[string]interface{}, error) {
	limited := io.LimitReader(c.Request.Body, s.maxBodySizeBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, fmt.Errorf("%s: %w", msgReadBodyFailed, err)
	}
	if int64(len(raw)) > s.maxBodySizeBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(raw), "max", s.maxBodySizeBytes)
		return nil, errBodyTooLarge
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]interface{}{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil || body == nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(raw))
		return nil, coreerrors.BadRequest(msgInvalidJSON)
	}
	return body, nil
}

// ref builds a document reference from the :uid and optional :id params. An all-digit
// id is a storage id, anything else a documentId.
func ref(c *gin.Context) document.Ref {
	r := document.Ref{ContentType: c.Param("uid")}
	id := c.Param("id")
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > 0 {
		r.EntityID = n
	} else {
		r.DocumentID = id
	}
	return r
}

func status(q url.Values) (v1.Status, error) {
	st, err := v1.ParseStatus(q.Get("status"), v1.StatusDraft)
	if err != nil {
		return "", coreerrors.BadRequest(err.Error())
	}
	return st, nil
}

func page(q url.Values) (pagination.Params, error) {
	var p pagination.Params
	for name, dst := range map[string]*int{"page": &p.Page, "pageSize": &p.PageSize} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, coreerrors.BadRequest(fmt.Sprintf("%s must be an integer", name))
		}
		*dst = n
	}
	return p, nil
}

// isNotFound reports whether err is a client NotFoundError.
func isNotFound(err error) bool {
	return errors.Is(err, coreerrors.NotFound(""))
}

package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelope_ClientError(t *testing.T) {
	status, body := Envelope(BadRequest("This relational field doesn't exist"))
	require.Equal(t, http.StatusBadRequest, status)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"data": null,
		"error": {
			"name": "BadRequestError",
			"message": "This relational field doesn't exist",
			"status": 400,
			"details": {}
		}
	}`, string(raw))
}

func TestEnvelope_WrappedClientError(t *testing.T) {
	err := fmt.Errorf("resolve owner: %w", NotFound(""))
	status, body := Envelope(err)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NotFoundError", body.Error.Name)
	require.Equal(t, "Not Found", body.Error.Message)
}

func TestEnvelope_InternalErrorIsMasked(t *testing.T) {
	status, body := Envelope(fmt.Errorf("pq: connection refused"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, NameApplication, body.Error.Name)
	require.Equal(t, "Internal Server Error", body.Error.Message)
	require.NotNil(t, body.Error.Details)
}

func TestError_Is(t *testing.T) {
	require.ErrorIs(t, fmt.Errorf("x: %w", Forbidden("contentType is required")), Forbidden(""))
	require.NotErrorIs(t, NotFound(""), Forbidden(""))
}

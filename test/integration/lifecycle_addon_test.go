//go:build integration

package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vellum-cms/vellum/internal/contentmanager"
	"github.com/vellum-cms/vellum/internal/graphql"
)

func TestCoreAPI_E2ELifecycle_AddOn(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	require.NoError(t, resetDatabase(t, h.db))

	var productID, shopID string

	t.Run("health endpoint", func(t *testing.T) {
		resp, err := h.client.Get(h.baseURL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		require.Contains(t, string(body), `"database":"connected"`)
	})

	t.Run("create draft documents", func(t *testing.T) {
		productID = createDocument(t, h, productUID, map[string]interface{}{"name": "Skate", "price": "19.90"})
		shopID = createDocument(t, h, shopUID, map[string]interface{}{
			"name":     "Corner",
			"products": []string{productID},
			"address":  map[string]interface{}{"street": "1 Main St", "city": "Lyon", "pickup": []string{productID}},
		})
	})

	t.Run("published variant is absent before publish", func(t *testing.T) {
		status, body := getJSON(t, h.client, collectionURL(h, shopUID)+"/"+shopID+"?status=published")
		require.Equal(t, http.StatusNotFound, status, string(body))
	})

	t.Run("publish both documents", func(t *testing.T) {
		for _, target := range []struct{ uid, id string }{{productUID, productID}, {shopUID, shopID}} {
			status, body := postJSON(t, h.client, collectionURL(h, target.uid)+"/"+target.id+"/actions/publish", nil)
			require.Equal(t, http.StatusOK, status, string(body))
		}
	})

	t.Run("graphql reads published relations", func(t *testing.T) {
		query := `query($id: ID!) { shop(documentId: $id) { data { name products { data { name } } } } }`
		status, body := postJSON(t, h.client, h.baseURL+graphql.DefaultPath, map[string]interface{}{
			"query":     query,
			"variables": map[string]interface{}{"id": shopID},
		})
		require.Equal(t, http.StatusOK, status, string(body))

		var result struct {
			Data struct {
				Shop struct {
					Data struct {
						Name     string `json:"name"`
						Products struct {
							Data []struct {
								Name string `json:"name"`
							} `json:"data"`
						} `json:"products"`
					} `json:"data"`
				} `json:"shop"`
			} `json:"data"`
			Errors []interface{} `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(body, &result))
		require.Empty(t, result.Errors)
		require.Equal(t, "Corner", result.Data.Shop.Data.Name)
		require.Len(t, result.Data.Shop.Data.Products.Data, 1)
		require.Equal(t, "Skate", result.Data.Shop.Data.Products.Data[0].Name)
	})

	t.Run("history lists draft and published snapshots", func(t *testing.T) {
		q := url.Values{"contentType": {shopUID}, "documentId": {shopID}}
		status, body := getJSON(t, h.client, h.baseURL+contentmanager.Prefix+"/history-versions?"+q.Encode())
		require.Equal(t, http.StatusOK, status, string(body))

		var versions struct {
			Data []struct {
				Status string `json:"status"`
			} `json:"data"`
			Meta struct {
				Pagination struct {
					Total int `json:"total"`
				} `json:"pagination"`
			} `json:"meta"`
		}
		require.NoError(t, json.Unmarshal(body, &versions))
		require.Equal(t, 2, versions.Meta.Pagination.Total)
		require.Equal(t, "published", versions.Data[0].Status)
	})

	t.Run("unpublish removes the published variant only", func(t *testing.T) {
		status, body := postJSON(t, h.client, collectionURL(h, productUID)+"/"+productID+"/actions/unpublish", nil)
		require.Equal(t, http.StatusOK, status, string(body))

		status, body = getJSON(t, h.client, collectionURL(h, productUID)+"/"+productID)
		require.Equal(t, http.StatusOK, status, string(body))
		require.Contains(t, string(body), `"publishedAt":null`)
	})
}

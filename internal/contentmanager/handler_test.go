package contentmanager_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vellum-cms/vellum/internal/contentmanager"
	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/core/pagination"
	"github.com/vellum-cms/vellum/internal/core/storage/memory"
	"github.com/vellum-cms/vellum/internal/document"
	"github.com/vellum-cms/vellum/internal/history"
	"github.com/vellum-cms/vellum/internal/idempotency"
	contentmanagermocks "github.com/vellum-cms/vellum/internal/mocks/contentmanager"
	"github.com/vellum-cms/vellum/internal/relation"
	"github.com/vellum-cms/vellum/internal/schema"
	"github.com/vellum-cms/vellum/internal/schema/schematest"
)

type testEnv struct {
	router *gin.Engine
	store  *memory.Store
}

func newTestEnv(t *testing.T, opts ...contentmanager.Option) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := schematest.Registry(t)
	store := memory.New()
	hist := history.NewService(reg, history.NewMemoryStore(), 100)

	seq := 0
	docs := document.NewService(reg, schema.NewValidator(), store, "en", pagination.Limits{},
		document.WithHistory(hist),
		document.WithDocumentIDs(func() string {
			seq++
			return fmt.Sprintf("doc-%d", seq)
		}),
	)
	engine := relation.NewEngine(reg, store, docs.Resolver(), pagination.Limits{}, nil)

	r := gin.New()
	contentmanager.NewService(reg, docs, engine, hist, 100, opts...).RegisterRoutes(r)
	return &testEnv{router: r, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body), resp.Body.String())
	return body
}

func relationsPath(uid, id, field string, query string) string {
	p := fmt.Sprintf("%s/relations/%s/%s/%s", contentmanager.Prefix, uid, id, field)
	if query != "" {
		p += "?" + query
	}
	return p
}

// seedShop creates Skate, Candle and Tofu (doc-1..3), publishes Skate and creates a
// shop (doc-4) with products_om [Skate, Candle].
func seedShop(t *testing.T, e *testEnv) {
	t.Helper()
	for _, name := range []string{"Skate", "Candle", "Tofu"} {
		resp := e.do(t, http.MethodPost, contentmanager.Prefix+"/collection-types/"+schematest.ProductUID, fmt.Sprintf(`{"name":%q}`, name))
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	}
	resp := e.do(t, http.MethodPost, contentmanager.Prefix+"/collection-types/"+schematest.ProductUID+"/doc-1/actions/publish", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = e.do(t, http.MethodPost, contentmanager.Prefix+"/collection-types/"+schematest.ShopUID,
		`{"name":"Corner","products_om":["doc-1","doc-2"]}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	data := decode(t, resp)["data"].(map[string]interface{})
	require.Equal(t, "doc-4", data["documentId"])
}

func TestFindExisting_ShopScenario(t *testing.T) {
	e := newTestEnv(t)
	seedShop(t, e)

	resp := e.do(t, http.MethodGet, relationsPath(schematest.ShopUID, "doc-4", "products_om", "status=draft"), "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		Results    []map[string]interface{} `json:"results"`
		Pagination pagination.PageInfo      `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, 2, body.Pagination.Total)

	// Existing relations are sorted by name, not by link order.
	assert.Equal(t, "Candle", body.Results[0]["name"])
	assert.Nil(t, body.Results[0]["publishedAt"])
	assert.Equal(t, "Skate", body.Results[1]["name"])
	assert.NotNil(t, body.Results[1]["publishedAt"])

	resp = e.do(t, http.MethodGet, relationsPath(schematest.ShopUID, "doc-4", "products_om", "status=published"), "")
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.JSONEq(t,
		`{"data":null,"error":{"name":"NotFoundError","message":"Not Found","status":404,"details":{}}}`,
		resp.Body.String())
}

func TestFindExisting_FieldErrors(t *testing.T) {
	e := newTestEnv(t)
	seedShop(t, e)

	const want = `{"data":null,"error":{"name":"BadRequestError","message":"This relational field doesn't exist","status":400,"details":{}}}`
	for _, field := range []string{"nope", "name"} {
		t.Run(field, func(t *testing.T) {
			resp := e.do(t, http.MethodGet, relationsPath(schematest.ShopUID, "doc-4", field, ""), "")
			require.Equal(t, http.StatusBadRequest, resp.Code)
			require.JSONEq(t, want, resp.Body.String())
		})
	}

	resp := e.do(t, http.MethodGet, relationsPath(schematest.ShopUID, "missing", "products_om", ""), "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = e.do(t, http.MethodGet, relationsPath(schematest.ShopUID, "doc-4", "products_om", "status=archived"), "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = e.do(t, http.MethodGet, relationsPath(schematest.ShopUID, "doc-4", "products_om", "page=two"), "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestFindExisting_EmptyAndByStorageID(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodPost, contentmanager.Prefix+"/collection-types/"+schematest.ShopUID, `{"name":"Empty"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	id := decode(t, resp)["data"].(map[string]interface{})["id"]

	resp = e.do(t, http.MethodGet, relationsPath(schematest.ShopUID, fmt.Sprint(id), "products_mm", "_q=anything"), "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.JSONEq(t,
		`{"results":[],"pagination":{"page":1,"pageSize":10,"pageCount":0,"total":0}}`,
		resp.Body.String())
}

func TestFindOne_Populate(t *testing.T) {
	e := newTestEnv(t)
	seedShop(t, e)

	resp := e.do(t, http.MethodGet, contentmanager.Prefix+"/collection-types/"+schematest.ShopUID+"/doc-4?populate=products_om,products_oo", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	data := decode(t, resp)["data"].(map[string]interface{})

	products := data["products_om"].([]interface{})
	require.Len(t, products, 2)
	assert.Equal(t, "Skate", products[0].(map[string]interface{})["name"], "populate keeps link order")
	assert.Equal(t, "Candle", products[1].(map[string]interface{})["name"])
	assert.Nil(t, data["products_oo"])

	resp = e.do(t, http.MethodGet, contentmanager.Prefix+"/collection-types/"+schematest.ShopUID+"/doc-4?populate=name", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDocumentLifecycle(t *testing.T) {
	e := newTestEnv(t)
	base := contentmanager.Prefix + "/collection-types/" + schematest.ProductUID

	resp := e.do(t, http.MethodPost, base, `{"name":"Skate"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = e.do(t, http.MethodPut, base+"/doc-1", `{"name":"Skateboard"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "Skateboard", decode(t, resp)["data"].(map[string]interface{})["name"])

	resp = e.do(t, http.MethodGet, base+"/doc-1?status=published", "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = e.do(t, http.MethodPost, base+"/doc-1/actions/publish", "")
	require.Equal(t, http.StatusOK, resp.Code)
	resp = e.do(t, http.MethodGet, base+"/doc-1?status=published", "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = e.do(t, http.MethodPost, base+"/doc-1/actions/unpublish", "")
	require.Equal(t, http.StatusOK, resp.Code)
	resp = e.do(t, http.MethodGet, base+"/doc-1?status=published", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
	resp = e.do(t, http.MethodGet, base+"/doc-1", "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = e.do(t, http.MethodPost, base+"/doc-1/actions/archive", "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = e.do(t, http.MethodGet, base+"?sort=name&pageSize=5", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Results    []map[string]interface{} `json:"results"`
		Pagination pagination.PageInfo      `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list.Results, 1)
	assert.Equal(t, 5, list.Pagination.PageSize)

	resp = e.do(t, http.MethodDelete, base+"/doc-1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	resp = e.do(t, http.MethodGet, base+"/doc-1", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCreate_BodyErrors(t *testing.T) {
	e := newTestEnv(t, contentmanager.WithMaxBodySize(1))
	base := contentmanager.Prefix + "/collection-types/" + schematest.ProductUID

	resp := e.do(t, http.MethodPost, base, `{"name":`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Invalid JSON body", decode(t, resp)["error"].(map[string]interface{})["message"])

	resp = e.do(t, http.MethodPost, base, `{"name":"`+strings.Repeat("x", 1024*1024)+`"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)

	resp = e.do(t, http.MethodPost, base, `{"name":42}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, coreerrors.NameValidation, decode(t, resp)["error"].(map[string]interface{})["name"])
}

func TestSingleTypes(t *testing.T) {
	e := newTestEnv(t)
	base := contentmanager.Prefix + "/single-types/" + schematest.HomepageUID

	resp := e.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = e.do(t, http.MethodPut, base, `{"title":"Welcome"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	documentID := decode(t, resp)["data"].(map[string]interface{})["documentId"]

	resp = e.do(t, http.MethodPut, base, `{"title":"Hello"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, documentID, data["documentId"], "the single document is updated in place")
	assert.Equal(t, "Hello", data["title"])

	resp = e.do(t, http.MethodPost, base+"/actions/publish", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	resp = e.do(t, http.MethodGet, base+"?status=published", "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = e.do(t, http.MethodGet, base+"/relations/featured", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Empty(t, decode(t, resp)["results"])
}

func TestFindVersions(t *testing.T) {
	e := newTestEnv(t)
	seedShop(t, e)

	resp := e.do(t, http.MethodGet, contentmanager.Prefix+"/history-versions?contentType="+url.QueryEscape(schematest.ProductUID)+"&documentId=doc-1&pageSize=1", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		Data []map[string]interface{} `json:"data"`
		Meta struct {
			Pagination pagination.PageInfo `json:"pagination"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, 2, body.Meta.Pagination.Total, "create and publish are both recorded")
	assert.Equal(t, "published", body.Data[0]["status"], "newest first")

	resp = e.do(t, http.MethodGet, contentmanager.Prefix+"/history-versions?contentType="+url.QueryEscape(schematest.ProductUID), "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Meta.Pagination.Total, "three creates and one publish across all products")

	resp = e.do(t, http.MethodGet, contentmanager.Prefix+"/history-versions", "")
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.JSONEq(t,
		`{"data":null,"error":{"name":"ForbiddenError","message":"contentType and documentId are required","status":403,"details":{}}}`,
		resp.Body.String())
}

func TestPermissions(t *testing.T) {
	perms := contentmanagermocks.NewPermissionChecker(t)
	perms.EXPECT().CannotRead(mock.Anything, schematest.ShopUID).Return(true).Once()
	perms.EXPECT().CannotRead(mock.Anything, schematest.ProductUID).Return(false)
	perms.EXPECT().
		SanitizeQuery(mock.Anything, schematest.ProductUID, mock.Anything).
		RunAndReturn(func(_ context.Context, _ string, q url.Values) (url.Values, error) {
			q.Set("status", "published")
			return q, nil
		})

	e := newTestEnv(t, contentmanager.WithPermissions(perms))
	resp := e.do(t, http.MethodPost, contentmanager.Prefix+"/collection-types/"+schematest.ProductUID, `{"name":"Skate"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = e.do(t, http.MethodGet, contentmanager.Prefix+"/collection-types/"+schematest.ShopUID, "")
	require.Equal(t, http.StatusForbidden, resp.Code)

	// The sanitized query forces published, where the draft-only product is invisible.
	resp = e.do(t, http.MethodGet, contentmanager.Prefix+"/collection-types/"+schematest.ProductUID+"/doc-1?status=draft", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestPermissions_SanitizeErrorPassesThrough(t *testing.T) {
	perms := contentmanagermocks.NewPermissionChecker(t)
	perms.EXPECT().CannotRead(mock.Anything, mock.Anything).Return(false)
	perms.EXPECT().SanitizeQuery(mock.Anything, mock.Anything, mock.Anything).
		Return(nil, coreerrors.Validation("Invalid key secret", map[string]interface{}{"key": "secret"}))

	e := newTestEnv(t, contentmanager.WithPermissions(perms))
	resp := e.do(t, http.MethodGet, contentmanager.Prefix+"/collection-types/"+schematest.ProductUID+"?secret=1", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.JSONEq(t,
		`{"data":null,"error":{"name":"ValidationError","message":"Invalid key secret","status":400,"details":{"key":"secret"}}}`,
		resp.Body.String())
}

func TestMutationMiddleware_IdempotentCreate(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	store := idempotency.NewRedisStore(redis.NewClient(&redis.Options{Addr: m.Addr()}), "test:", time.Hour)

	e := newTestEnv(t, contentmanager.WithMutationMiddleware(idempotency.Middleware(store)))
	base := contentmanager.Prefix + "/collection-types/" + schematest.ProductUID

	first := e.do(t, http.MethodPost, base, `{"name":"Skate"}`, idempotency.HeaderKey, "k-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := e.do(t, http.MethodPost, base, `{"name":"Skate"}`, idempotency.HeaderKey, "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(idempotency.HeaderReplayed))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	resp := e.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode(t, resp)["results"], 1, "the replay did not create a second document")
}

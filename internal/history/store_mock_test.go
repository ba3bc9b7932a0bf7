package history_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	"github.com/vellum-cms/vellum/internal/core/pagination"
	"github.com/vellum-cms/vellum/internal/history"
	historymocks "github.com/vellum-cms/vellum/internal/mocks/history"
	"github.com/vellum-cms/vellum/internal/schema/schematest"
)

func TestService_FindVersionsPageTranslatesPaging(t *testing.T) {
	store := historymocks.NewStore(t)
	store.EXPECT().
		Find(mock.Anything, history.StoreQuery{
			ContentType: schematest.ProductUID,
			DocumentID:  "doc-1",
			Offset:      10,
			Limit:       5,
		}).
		Return([]*v1.HistoryVersion{{ID: "v-11"}}, 11, nil).
		Once()

	svc := history.NewService(schematest.Registry(t), store, 100)
	page, err := svc.FindVersionsPage(context.Background(), history.Query{
		ContentType: schematest.ProductUID,
		DocumentID:  "doc-1",
		Params:      pagination.Params{Page: 3, PageSize: 5},
	})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, pagination.PageInfo{Page: 3, PageSize: 5, PageCount: 3, Total: 11}, page.Pagination)
}

func TestService_StoreErrors(t *testing.T) {
	boom := errors.New("connection reset")

	store := historymocks.NewStore(t)
	store.EXPECT().Insert(mock.Anything, mock.Anything).Return(boom).Once()
	store.EXPECT().Find(mock.Anything, mock.Anything).Return(nil, 0, boom).Once()

	svc := history.NewService(schematest.Registry(t), store, 100)

	err := svc.Record(context.Background(), &v1.HistoryVersion{ContentType: schematest.ProductUID, DocumentID: "doc-1"})
	require.ErrorIs(t, err, boom)

	_, err = svc.FindVersionsPage(context.Background(), history.Query{ContentType: schematest.HomepageUID})
	require.ErrorIs(t, err, boom)
}

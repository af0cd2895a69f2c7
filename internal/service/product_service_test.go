package service

import (
	"context"
	"errors"
	"testing"

	"github.com/qcom/otpauth/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProductStore struct {
	mock.Mock
}

func (m *mockProductStore) List(ctx context.Context, q models.ProductQuery) ([]models.Product, int, error) {
	args := m.Called(ctx, q)
	var products []models.Product
	if p := args.Get(0); p != nil {
		products = p.([]models.Product)
	}
	return products, args.Int(1), args.Error(2)
}

func (m *mockProductStore) Create(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductStore) GetByName(ctx context.Context, name string) (*models.Product, error) {
	args := m.Called(ctx, name)
	if p := args.Get(0); p != nil {
		return p.(*models.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProductStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func newTestProductService(t *testing.T) (*ProductService, *mockProductStore) {
	t.Helper()

	store := &mockProductStore{}
	t.Cleanup(func() { store.AssertExpectations(t) })

	logger, _ := test.NewNullLogger()
	return NewProductService(store, logger), store
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name string
		in   models.ProductQuery
		want models.ProductQuery
	}{
		{
			name: "defaults",
			in:   models.ProductQuery{},
			want: models.ProductQuery{Page: 1, Limit: 10, SortBy: "name", SortOrder: "ASC"},
		},
		{
			name: "limit capped",
			in:   models.ProductQuery{Page: 3, Limit: 500, SortBy: "price", SortOrder: "desc"},
			want: models.ProductQuery{Page: 3, Limit: 100, SortBy: "price", SortOrder: "DESC"},
		},
		{
			name: "unknown sort key",
			in:   models.ProductQuery{Search: "  phone ", Page: -2, Limit: 5, SortBy: "id", SortOrder: "sideways"},
			want: models.ProductQuery{Search: "phone", Page: 1, Limit: 5, SortBy: "name", SortOrder: "ASC"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuery(tt.in))
		})
	}
}

func TestProductService_List(t *testing.T) {
	svc, store := newTestProductService(t)
	q := models.ProductQuery{Page: 2, Limit: 5, SortBy: "name", SortOrder: "ASC"}
	store.On("List", mock.Anything, q).Return([]models.Product{{Name: "iPad Air"}}, 12, nil).Once()

	page, err := svc.List(context.Background(), q)
	require.NoError(t, err)

	assert.Len(t, page.Data, 1)
	assert.Equal(t, models.PageMeta{
		Page:       2,
		Limit:      5,
		Total:      12,
		TotalPages: 3,
		HasNext:    true,
		HasPrev:    true,
	}, page.Meta)
}

func TestProductService_ListEmpty(t *testing.T) {
	svc, store := newTestProductService(t)
	store.On("List", mock.Anything, mock.Anything).Return([]models.Product{}, 0, nil).Once()

	page, err := svc.List(context.Background(), models.ProductQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Meta.TotalPages)
	assert.False(t, page.Meta.HasNext)
	assert.False(t, page.Meta.HasPrev)
}

func TestProductService_Create(t *testing.T) {
	svc, store := newTestProductService(t)
	store.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.ID != "" && p.Name == "Dell XPS 13" && p.Price == 1299.99 && !p.CreatedAt.IsZero()
	})).Return(nil).Once()

	p, err := svc.Create(context.Background(), "Dell XPS 13", 1299.99, "")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
}

func TestProductService_Delete(t *testing.T) {
	svc, store := newTestProductService(t)
	const missing = "0b6f1d2e-3c4a-4f5b-8e9d-1a2b3c4d5e6f"
	store.On("Delete", mock.Anything, missing).Return(models.ErrNotFound).Once()

	require.ErrorIs(t, svc.Delete(context.Background(), missing), models.ErrNotFound)
}

func TestProductService_DeleteNonUUID(t *testing.T) {
	svc, store := newTestProductService(t)

	require.ErrorIs(t, svc.Delete(context.Background(), "not-a-uuid"), models.ErrNotFound)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestProductService_Seed(t *testing.T) {
	svc, store := newTestProductService(t)

	store.On("GetByName", mock.Anything, "iPhone 15 Pro").Return(&models.Product{Name: "iPhone 15 Pro"}, nil).Once()
	store.On("GetByName", mock.Anything, mock.Anything).Return(nil, models.ErrNotFound).Times(len(sampleProducts) - 1)
	store.On("Create", mock.Anything, mock.Anything).Return(nil).Times(len(sampleProducts) - 1)

	created, err := svc.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(sampleProducts)-1, created)
}

func TestProductService_SeedLookupError(t *testing.T) {
	svc, store := newTestProductService(t)
	store.On("GetByName", mock.Anything, "iPhone 15 Pro").Return(nil, errors.New("connection refused")).Once()

	created, err := svc.Seed(context.Background())
	require.Error(t, err)
	assert.Zero(t, created)
}

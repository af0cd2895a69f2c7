package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qcom/otpauth/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type ProductStore interface {
	List(ctx context.Context, q models.ProductQuery) ([]models.Product, int, error)
	Create(ctx context.Context, p *models.Product) error
	GetByName(ctx context.Context, name string) (*models.Product, error)
	Delete(ctx context.Context, id string) error
}

type ProductService struct {
	store  ProductStore
	logger *logrus.Logger
	now    func() time.Time
}

func NewProductService(store ProductStore, logger *logrus.Logger) *ProductService {
	return &ProductService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// NormalizeQuery fills defaults and clamps q to the accepted ranges.
func NormalizeQuery(q models.ProductQuery) models.ProductQuery {
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageLimit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}
	switch q.SortBy {
	case "name", "price", "created_at":
	default:
		q.SortBy = "name"
	}
	q.SortOrder = strings.ToUpper(q.SortOrder)
	if q.SortOrder != "DESC" {
		q.SortOrder = "ASC"
	}
	return q
}

func (s *ProductService) List(ctx context.Context, q models.ProductQuery) (*models.ProductPage, error) {
	q = NormalizeQuery(q)

	products, total, err := s.store.List(ctx, q)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list products")
		return nil, err
	}

	totalPages := (total + q.Limit - 1) / q.Limit

	return &models.ProductPage{
		Data: products,
		Meta: models.PageMeta{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    q.Page < totalPages,
			HasPrev:    q.Page > 1,
		},
	}, nil
}

func (s *ProductService) Create(ctx context.Context, name string, price float64, description string) (*models.Product, error) {
	p := &models.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Price:       price,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": p.ID,
		"name":       p.Name,
	}).Info("Product created")
	return p, nil
}

// Delete removes the product with id. An id that is not a UUID cannot name a
// product and reports models.ErrNotFound.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.WithField("product_id", id).Info("Product deleted")
	return nil
}

var sampleProducts = []models.Product{
	{Name: "iPhone 15 Pro", Price: 999.99, Description: "Latest iPhone with advanced features"},
	{Name: "Samsung Galaxy S24", Price: 899.99, Description: "Premium Android smartphone"},
	{Name: "MacBook Pro M3", Price: 1999.99, Description: "Powerful laptop for professionals"},
	{Name: "Dell XPS 13", Price: 1299.99, Description: "Ultrabook with excellent performance"},
	{Name: "iPad Air", Price: 599.99, Description: "Versatile tablet for work and play"},
	{Name: "Sony WH-1000XM5", Price: 349.99, Description: "Premium noise-canceling headphones"},
	{Name: "Apple Watch Series 9", Price: 399.99, Description: "Smartwatch with health features"},
	{Name: "Nintendo Switch OLED", Price: 349.99, Description: "Gaming console for all ages"},
	{Name: "Canon EOS R6", Price: 2499.99, Description: "Professional mirrorless camera"},
	{Name: "DJI Mini 3 Pro", Price: 759.99, Description: "Compact drone with 4K camera"},
}

// Seed inserts the sample products that are not in the catalog yet and
// returns how many were added.
func (s *ProductService) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, sample := range sampleProducts {
		_, err := s.store.GetByName(ctx, sample.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			return created, fmt.Errorf("failed to look up %q: %w", sample.Name, err)
		}

		if _, err := s.Create(ctx, sample.Name, sample.Price, sample.Description); err != nil {
			return created, err
		}
		created++
	}

	s.logger.WithField("created", created).Info("Sample products seeded")
	return created, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/qcom/otpauth/internal/models"
	"github.com/sirupsen/logrus"
)

// sortColumns maps accepted sort keys onto columns; anything else falls
// back to name.
var sortColumns = map[string]string{
	"name":       "name",
	"price":      "price",
	"created_at": "created_at",
}

type ProductRepository struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewProductRepository(db *sql.DB, logger *logrus.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger,
	}
}

// List returns one page of products matching q together with the total
// number of matches. q is expected to be normalized by the caller.
func (r *ProductRepository) List(ctx context.Context, q models.ProductQuery) ([]models.Product, int, error) {
	var (
		where string
		args  []any
	)
	if q.Search != "" {
		where = " WHERE name ILIKE $1 OR description ILIKE $1"
		args = append(args, "%"+q.Search+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = "name"
	}
	order := "ASC"
	if q.SortOrder == "DESC" {
		order = "DESC"
	}

	query := fmt.Sprintf(
		"SELECT id, name, price, description, created_at FROM products%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		where, column, order, len(args)+1, len(args)+2,
	)
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]models.Product, 0, q.Limit)
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, total, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	const query = `INSERT INTO products (id, name, price, description, created_at) VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Price, p.Description, p.CreatedAt); err != nil {
		r.logger.WithError(err).Error("Failed to create product")
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

func (r *ProductRepository) GetByName(ctx context.Context, name string) (*models.Product, error) {
	const query = `SELECT id, name, price, description, created_at FROM products WHERE name = $1 LIMIT 1`

	var p models.Product
	err := r.db.QueryRowContext(ctx, query, name).Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}

	return nil
}

package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storefront/models"
	"storefront/repository"
)

const featuredLimit = 8

const productColumns = "id, name, description, price, category, images, sizes, stock, featured, created_at, updated_at"

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a ProductRepository backed by MySQL.
func NewProductRepository(db *sql.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (models.Product, error) {
	var (
		p             models.Product
		images, sizes []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
		&images, &sizes, &p.Stock, &p.Featured, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	if err := decodeList(images, &p.Images); err != nil {
		return p, fmt.Errorf("failed to decode images of product %s: %w", p.ID, err)
	}
	if err := decodeList(sizes, &p.Sizes); err != nil {
		return p, fmt.Errorf("failed to decode sizes of product %s: %w", p.ID, err)
	}
	return p, nil
}

func decodeList(raw []byte, dst *[]string) error {
	*dst = []string{}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeList(list []string) ([]byte, error) {
	if list == nil {
		list = []string{}
	}
	return json.Marshal(list)
}

// escapeLike escapes the LIKE wildcards of a user supplied search term.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (r *productRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	var (
		where = []string{"deleted_at IS NULL"}
		args  []any
	)
	if filter.Featured {
		where = append(where, "featured = TRUE")
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Search != "" {
		term := "%" + strings.ToLower(escapeLike(filter.Search)) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, term, term)
	}

	query := "SELECT " + productColumns + " FROM products WHERE " + strings.Join(where, " AND ") +
		" ORDER BY created_at DESC"
	if filter.Featured {
		query += fmt.Sprintf(" LIMIT %d", featuredLimit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return products, nil
}

func (r *productRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ? AND deleted_at IS NULL", id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return &p, nil
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	found := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE deleted_at IS NULL AND id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		found[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return found, nil
}

func (r *productRepository) Create(ctx context.Context, p *models.Product) error {
	images, err := encodeList(p.Images)
	if err != nil {
		return err
	}
	sizes, err := encodeList(p.Sizes)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO products ("+productColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Description, p.Price.StringFixed(2), string(p.Category),
		images, sizes, p.Stock, p.Featured, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Update(ctx context.Context, p *models.Product) error {
	images, err := encodeList(p.Images)
	if err != nil {
		return err
	}
	sizes, err := encodeList(p.Sizes)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, price = ?, category = ?, images = ?, sizes = ?,
		    stock = ?, featured = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		p.Name, p.Description, p.Price.StringFixed(2), string(p.Category), images, sizes,
		p.Stock, p.Featured, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return requireAffected(result)
}

// Delete hides the product from the catalog. The row is kept so that
// order_items.product_id stays valid.
func (r *productRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE products SET deleted_at = UTC_TIMESTAMP(6) WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireAffected(result)
}

func (r *productRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE deleted_at IS NULL").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/models"
	"storefront/repository"
)

// cartSelect joins the catalog so the mirror returns display data. Deleted
// products still resolve here until the line is removed.
const cartSelect = `
	SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.size, ci.created_at,
	       p.name, p.price, COALESCE(JSON_UNQUOTE(JSON_EXTRACT(p.images, '$[0]')), '')
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id`

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a CartRepository backed by MySQL.
func NewCartRepository(db *sql.DB) repository.CartRepository {
	return &cartRepository{db: db}
}

func scanCartItem(row rowScanner) (models.CartItem, error) {
	var c models.CartItem
	err := row.Scan(&c.ID, &c.UserID, &c.ProductID, &c.Quantity, &c.Size, &c.CreatedAt,
		&c.Name, &c.Price, &c.Image)
	return c, err
}

func (r *cartRepository) ListByUser(ctx context.Context, userID string) ([]models.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, cartSelect+" WHERE ci.user_id = ? ORDER BY ci.created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart rows: %w", err)
	}
	return items, nil
}

func (r *cartRepository) FindByID(ctx context.Context, id string) (*models.CartItem, error) {
	item, err := scanCartItem(r.db.QueryRowContext(ctx, cartSelect+" WHERE ci.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return &item, nil
}

func (r *cartRepository) Upsert(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
		item.ID, item.UserID, item.ProductID, item.Quantity, item.Size, item.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart item: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		cartSelect+" WHERE ci.user_id = ? AND ci.product_id = ? AND ci.size = ?",
		item.UserID, item.ProductID, item.Size)
	saved, err := scanCartItem(row)
	if err != nil {
		return nil, fmt.Errorf("failed to reload cart item: %w", err)
	}
	return &saved, nil
}

func (r *cartRepository) UpdateQuantity(ctx context.Context, id string, quantity int) (*models.CartItem, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE cart_items SET quantity = ? WHERE id = ?", quantity, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}

	return r.FindByID(ctx, id)
}

func (r *cartRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	return requireAffected(result)
}

func (r *cartRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

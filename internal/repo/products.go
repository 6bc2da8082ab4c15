package repo

import (
	"context"

	"github.com/google/uuid"
)

// Products exposes the catalog summary lookup the cart hydration needs.
type Products struct {
	DB DBTX
}

// SummariesByIDs returns display summaries for the given product ids.
// Missing or inactive products are simply absent from the result.
func (r Products) SummariesByIDs(ctx context.Context, ids []uuid.UUID) ([]ProductSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, current_price, original_price, image_url
		FROM products WHERE id = ANY($1) AND active`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProductSummary
	for rows.Next() {
		var p ProductSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.CurrentPrice, &p.OriginalPrice, &p.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetSummary returns a single product summary.
func (r Products) GetSummary(ctx context.Context, id uuid.UUID) (ProductSummary, error) {
	var p ProductSummary
	row := r.DB.QueryRow(ctx, `
		SELECT id, name, current_price, original_price, image_url
		FROM products WHERE id = $1 AND active`, id)
	err := row.Scan(&p.ID, &p.Name, &p.CurrentPrice, &p.OriginalPrice, &p.ImageURL)
	return p, err
}

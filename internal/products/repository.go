package products

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a product id or url is not tracked.
var ErrNotFound = errors.New("product not found")

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const productColumns = `id, url, title, current_price, image_url, last_checked, created_at, highest_price, lowest_price`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var image sql.NullString
	var highest, lowest sql.NullFloat64
	err := row.Scan(&p.ID, &p.URL, &p.Title, &p.CurrentPrice, &image,
		&p.LastChecked, &p.CreatedAt, &highest, &lowest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if image.Valid {
		p.ImageURL = image.String
	}
	if highest.Valid {
		v := highest.Float64
		p.HighestPrice = &v
	}
	if lowest.Valid {
		v := lowest.Float64
		p.LowestPrice = &v
	}
	return &p, nil
}

// CreateProduct inserts a product together with its first observation in
// one transaction: a product never exists without at least one reading.
func (r *Repository) CreateProduct(ctx context.Context, p *Product, first *PriceObservation) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO products (id, url, title, current_price, image_url, last_checked, created_at, highest_price, lowest_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.URL, p.Title, p.CurrentPrice, nullString(p.ImageURL),
		p.LastChecked, p.CreatedAt, p.HighestPrice, p.LowestPrice)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO price_history (id, product_id, price, timestamp)
VALUES ($1, $2, $3, $4)`,
		first.ID, first.ProductID, first.Price, first.Timestamp)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetProductByID(ctx context.Context, id string) (*Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (r *Repository) GetProductByURL(ctx context.Context, url string) (*Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE url = $1`, url)
	return scanProduct(row)
}

func (r *Repository) GetAllProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY last_checked DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	return res, rows.Err()
}

func (r *Repository) UpdateProduct(ctx context.Context, p *Product) error {
	tag, err := r.db.Exec(ctx, `
UPDATE products
SET title = $1, current_price = $2, image_url = $3, last_checked = $4, highest_price = $5, lowest_price = $6
WHERE id = $7`,
		p.Title, p.CurrentPrice, nullString(p.ImageURL),
		p.LastChecked, p.HighestPrice, p.LowestPrice, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) AddObservation(ctx context.Context, o *PriceObservation) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO price_history (id, product_id, price, timestamp)
VALUES ($1, $2, $3, $4)`,
		o.ID, o.ProductID, o.Price, o.Timestamp)
	return err
}

// GetObservationsByProduct returns a product's full history in
// chronological order.
func (r *Repository) GetObservationsByProduct(ctx context.Context, productID string) ([]PriceObservation, error) {
	return r.queryObservations(ctx, `
SELECT id, product_id, price, timestamp
FROM price_history
WHERE product_id = $1
ORDER BY timestamp ASC`, productID)
}

// GetLatestTwoObservations returns at most the two most recent readings,
// newest first; they determine the derived price change.
func (r *Repository) GetLatestTwoObservations(ctx context.Context, productID string) ([]PriceObservation, error) {
	return r.queryObservations(ctx, `
SELECT id, product_id, price, timestamp
FROM price_history
WHERE product_id = $1
ORDER BY timestamp DESC
LIMIT 2`, productID)
}

func (r *Repository) queryObservations(ctx context.Context, query, productID string) ([]PriceObservation, error) {
	rows, err := r.db.Query(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PriceObservation
	for rows.Next() {
		var o PriceObservation
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Price, &o.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

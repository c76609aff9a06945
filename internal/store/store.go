package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pharmacy-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves the catalog. Hidden products are excluded
// unless includeHidden is set (admin/staff views).
func (s *Store) ListProducts(ctx context.Context, includeHidden bool) ([]models.Product, error) {
	var products []models.Product
	query := "SELECT * FROM products ORDER BY name"
	if !includeHidden {
		query = "SELECT * FROM products WHERE is_hidden = false ORDER BY name"
	}
	err := s.db.SelectContext(ctx, &products, query)
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// CreateProduct inserts a new catalog entry
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, name, category, price, stock, unit, description, image_url, code, expiry_date, is_hidden, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Category, p.Price, p.Stock, p.Unit,
		p.Description, p.ImageURL, p.Code, p.ExpiryDate, p.IsHidden, p.UpdatedAt)
	return err
}

// UpdateProduct overwrites a catalog entry
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, category = $2, price = $3, stock = $4, unit = $5,
		    description = $6, image_url = $7, code = $8, expiry_date = $9,
		    is_hidden = $10, updated_at = $11
		WHERE id = $12`

	res, err := s.db.ExecContext(ctx, query,
		p.Name, p.Category, p.Price, p.Stock, p.Unit,
		p.Description, p.ImageURL, p.Code, p.ExpiryDate, p.IsHidden, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product not found: %s", p.ID)
	}
	return nil
}

// UpdateProductStock updates only the stock count
func (s *Store) UpdateProductStock(ctx context.Context, id string, stock int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2",
		stock, id)
	return err
}

// DeleteProduct removes a catalog entry
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	return err
}

// userRow carries the JSON permissions column alongside the user fields.
type userRow struct {
	models.User
	RawPermissions []byte `db:"permissions"`
}

func (r *userRow) toUser() (*models.User, error) {
	u := r.User
	if len(r.RawPermissions) > 0 {
		if err := json.Unmarshal(r.RawPermissions, &u.Permissions); err != nil {
			return nil, fmt.Errorf("failed to decode permissions: %w", err)
		}
	}
	return &u, nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return row.toUser()
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM users WHERE lower(email) = lower($1)", email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", email)
	}
	if err != nil {
		return nil, err
	}
	return row.toUser()
}

// ListAdmins retrieves every user with the admin role. Used by the
// confirmation fan-out.
func (s *Store) ListAdmins(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, "SELECT * FROM users WHERE role = $1", models.RoleAdmin)
	if err != nil {
		return nil, err
	}

	admins := make([]models.User, 0, len(rows))
	for i := range rows {
		u, err := rows[i].toUser()
		if err != nil {
			return nil, err
		}
		admins = append(admins, *u)
	}
	return admins, nil
}

// UpsertUser creates or refreshes a user record from a resolved identity
func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	perms, err := json.Marshal(u.Permissions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, email, name, phone, photo_url, role, permissions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email, name = EXCLUDED.name, phone = EXCLUDED.phone,
		    photo_url = EXCLUDED.photo_url`

	_, err = s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.Name, u.Phone, u.PhotoURL, u.Role, perms, u.CreatedAt)
	return err
}

// UpdateUserRole changes a user's role (passkey elevation)
func (s *Store) UpdateUserRole(ctx context.Context, id, role string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET role = $1 WHERE id = $2", role, id)
	return err
}

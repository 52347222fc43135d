package catalog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/conv"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteCatalog 是基于 modernc sqlite 的 CatalogReader。
// 价格列以十进制文本存储，读取时通过 conv.ToFloat64 显式转换；时间列为 unix 秒。
type SQLiteCatalog struct {
	db *sql.DB
}

var (
	_ core.CatalogReader = (*SQLiteCatalog)(nil)
	_ Writer             = (*SQLiteCatalog)(nil)
)

// OpenSQLite 打开（或创建）path 指向的数据库并执行迁移；path 为 ":memory:" 时使用内存库。
func OpenSQLite(path string) (*SQLiteCatalog, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	// 单连接，避免 "database is locked"；":memory:" 也依赖单连接共享同一个库
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	c := &SQLiteCatalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return c, nil
}

func (c *SQLiteCatalog) Name() string { return "sqlite" }

func (c *SQLiteCatalog) Close() error { return c.db.Close() }

func (c *SQLiteCatalog) migrate() error {
	if _, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := c.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		tx, err := c.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", version, time.Now().Unix()); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// ========== 写入 ==========

func (c *SQLiteCatalog) AddProduct(ctx context.Context, p core.ProductRef) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO products (id, category_id, price, status, units_sold, review_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CategoryID, formatDecimal(p.Price), p.Status, p.UnitsSold, p.ReviewCount,
		p.CreatedAt.Unix(), p.UpdatedAt.Unix()); err != nil {
		return fmt.Errorf("insert product %s: %w", p.ID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM product_tags WHERE product_id = ?", p.ID); err != nil {
		return err
	}
	for _, tag := range p.Tags {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO product_tags (product_id, tag) VALUES (?, ?)", p.ID, tag); err != nil {
			return fmt.Errorf("insert tag %s/%s: %w", p.ID, tag, err)
		}
	}
	return tx.Commit()
}

func (c *SQLiteCatalog) AddOrder(ctx context.Context, o Order) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO orders (id, user_id, status, placed_at) VALUES (?, ?, ?, ?)",
		o.ID, o.UserID, o.Status, o.PlacedAt.Unix()); err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = ?", o.ID); err != nil {
		return err
	}
	for i, it := range o.Items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, line_no, product_id, quantity, unit_price) VALUES (?, ?, ?, ?, ?)",
			o.ID, i, it.ProductID, it.Quantity, formatDecimal(it.UnitPrice)); err != nil {
			return fmt.Errorf("insert order item %s#%d: %w", o.ID, i, err)
		}
	}
	return tx.Commit()
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ========== 订单 ==========

const completedStatuses = "('" + core.OrderStatusDelivered + "','" + core.OrderStatusPaymentCompleted + "')"

const orderLineColumns = `o.id, o.user_id, oi.product_id, oi.quantity, oi.unit_price, o.placed_at, o.status`

func (c *SQLiteCatalog) GetCompletedOrders(ctx context.Context, userID string, since time.Time) ([]core.InteractionRecord, error) {
	var sinceUnix int64
	if !since.IsZero() {
		sinceUnix = since.Unix()
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+orderLineColumns+`
		FROM orders o JOIN order_items oi ON oi.order_id = o.id
		WHERE o.user_id = ? AND o.status IN `+completedStatuses+` AND o.placed_at >= ?
		ORDER BY o.placed_at DESC, o.id DESC, oi.line_no ASC`, userID, sinceUnix)
	if err != nil {
		return nil, core.NewCatalogUnavailable("completed orders", err)
	}
	return scanRecords(rows)
}

func (c *SQLiteCatalog) GetOrdersContaining(ctx context.Context, productID string) ([]core.InteractionRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+orderLineColumns+`
		FROM orders o JOIN order_items oi ON oi.order_id = o.id
		WHERE o.status IN `+completedStatuses+`
		  AND o.id IN (SELECT order_id FROM order_items WHERE product_id = ?)
		ORDER BY o.placed_at DESC, o.id DESC, oi.line_no ASC`, productID)
	if err != nil {
		return nil, core.NewCatalogUnavailable("orders containing", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]core.InteractionRecord, error) {
	defer rows.Close()
	var out []core.InteractionRecord
	for rows.Next() {
		var (
			r        core.InteractionRecord
			price    any
			placedAt int64
		)
		if err := rows.Scan(&r.OrderID, &r.UserID, &r.ProductID, &r.Quantity, &price, &placedAt, &r.OrderStatus); err != nil {
			return nil, core.NewCatalogUnavailable("scan order line", err)
		}
		r.UnitPrice, _ = conv.ToFloat64(price)
		r.OrderTimestamp = time.Unix(placedAt, 0).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewCatalogUnavailable("order lines", err)
	}
	return out, nil
}

func (c *SQLiteCatalog) GetUsersWhoBought(ctx context.Context, productIDs []string) ([]string, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(productIDs))
	for _, id := range productIDs {
		args = append(args, id)
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT DISTINCT o.user_id
		FROM orders o JOIN order_items oi ON oi.order_id = o.id
		WHERE o.status IN `+completedStatuses+` AND oi.product_id IN (`+placeholders(len(args))+`)
		ORDER BY o.user_id`, args...)
	if err != nil {
		return nil, core.NewCatalogUnavailable("users who bought", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, core.NewCatalogUnavailable("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewCatalogUnavailable("users who bought", err)
	}
	return users, nil
}

func (c *SQLiteCatalog) GetOrderCountsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT oi.product_id, COUNT(DISTINCT o.id)
		FROM orders o JOIN order_items oi ON oi.order_id = o.id
		WHERE o.status IN `+completedStatuses+` AND o.placed_at >= ?
		GROUP BY oi.product_id`, since.Unix())
	if err != nil {
		return nil, core.NewCatalogUnavailable("order counts", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, core.NewCatalogUnavailable("scan order count", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewCatalogUnavailable("order counts", err)
	}
	return counts, nil
}

// ========== 商品 ==========

const productColumns = `p.id, p.category_id, p.price, p.status, p.units_sold, p.review_count, p.created_at, p.updated_at`

func (c *SQLiteCatalog) GetProduct(ctx context.Context, id string) (*core.ProductRef, error) {
	products, err := c.queryProducts(ctx, "product", "SELECT "+productColumns+" FROM products p WHERE p.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, core.ErrProductNotFound
	}
	return &products[0], nil
}

func (c *SQLiteCatalog) GetProducts(ctx context.Context, ids []string) (map[string]core.ProductRef, error) {
	out := make(map[string]core.ProductRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	products, err := c.queryProducts(ctx, "products",
		"SELECT "+productColumns+" FROM products p WHERE p.id IN ("+placeholders(len(args))+")", args...)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (c *SQLiteCatalog) GetProductsByCategory(ctx context.Context, categoryID string) ([]core.ProductRef, error) {
	return c.queryProducts(ctx, "products by category",
		"SELECT "+productColumns+" FROM products p WHERE p.status = 'active' AND p.category_id = ? ORDER BY p.id", categoryID)
}

func (c *SQLiteCatalog) GetProductsByTagOverlap(ctx context.Context, tags []string) ([]core.ProductRef, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(tags))
	for _, t := range tags {
		args = append(args, t)
	}
	return c.queryProducts(ctx, "products by tag", `
		SELECT `+productColumns+` FROM products p
		WHERE p.status = 'active'
		  AND p.id IN (SELECT product_id FROM product_tags WHERE tag IN (`+placeholders(len(args))+`))
		ORDER BY p.id`, args...)
}

func (c *SQLiteCatalog) GetProductsByPriceBand(ctx context.Context, min, max float64) ([]core.ProductRef, error) {
	return c.queryProducts(ctx, "products by price", `
		SELECT `+productColumns+` FROM products p
		WHERE p.status = 'active' AND CAST(p.price AS REAL) BETWEEN ? AND ?
		ORDER BY p.id`, min, max)
}

func (c *SQLiteCatalog) GetActiveProducts(ctx context.Context, categoryFilter []string) ([]core.ProductRef, error) {
	if len(categoryFilter) == 0 {
		return c.queryProducts(ctx, "active products",
			"SELECT "+productColumns+" FROM products p WHERE p.status = 'active' ORDER BY p.id")
	}
	args := make([]any, 0, len(categoryFilter))
	for _, cat := range categoryFilter {
		args = append(args, cat)
	}
	return c.queryProducts(ctx, "active products",
		"SELECT "+productColumns+" FROM products p WHERE p.status = 'active' AND p.category_id IN ("+
			placeholders(len(args))+") ORDER BY p.id", args...)
}

// queryProducts 执行商品查询并补齐标签。
func (c *SQLiteCatalog) queryProducts(ctx context.Context, op, query string, args ...any) ([]core.ProductRef, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewCatalogUnavailable(op, err)
	}
	var products []core.ProductRef
	for rows.Next() {
		var (
			p                    core.ProductRef
			price                any
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&p.ID, &p.CategoryID, &price, &p.Status, &p.UnitsSold, &p.ReviewCount, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, core.NewCatalogUnavailable(op, err)
		}
		if v, ok := conv.ToFloat64(price); ok {
			p.Price = v
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		products = append(products, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, core.NewCatalogUnavailable(op, err)
	}
	if err := c.attachTags(ctx, products); err != nil {
		return nil, core.NewCatalogUnavailable(op, err)
	}
	return products, nil
}

func (c *SQLiteCatalog) attachTags(ctx context.Context, products []core.ProductRef) error {
	if len(products) == 0 {
		return nil
	}
	index := make(map[string]int, len(products))
	args := make([]any, 0, len(products))
	for i, p := range products {
		index[p.ID] = i
		args = append(args, p.ID)
	}
	rows, err := c.db.QueryContext(ctx,
		"SELECT product_id, tag FROM product_tags WHERE product_id IN ("+placeholders(len(args))+") ORDER BY product_id, tag", args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return err
		}
		if i, ok := index[id]; ok {
			products[i].Tags = append(products[i].Tags, tag)
		}
	}
	return rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

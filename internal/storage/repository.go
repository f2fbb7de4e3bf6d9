// Package storage persists the domain model in SQLite behind typed query
// functions, one per use case, instead of a generic query builder.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tally/internal/core"

	sqlite3 "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// sqliteConstraintUnique is the SQLite extended result code for a UNIQUE
// constraint violation.
const sqliteConstraintUnique = 2067

// Repository is a SQLite-backed store for users, categories, transactions
// and budgets. Deletion policy lives in the schema: user and category
// deletes cascade to budgets and subcategories, while transactions only
// lose their category reference.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

func (r *Repository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO users (id, name) VALUES (?, ?)", u.ID, u.Name)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, "SELECT id, name FROM users WHERE id = ?", id).Scan(&u.ID, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// DeleteUser removes a user; their transactions and budgets cascade away.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// --- categories ---

func (r *Repository) CreateCategory(ctx context.Context, c *core.Category) error {
	c.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (name, type, parent_id, user_id, created_at) VALUES (?, ?, ?, ?, ?)",
		c.Name, string(c.Type), c.ParentID, c.UserID, c.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("category insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, type, parent_id, user_id, created_at FROM categories WHERE id = ?", id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns shared categories plus the user's own, ordered by
// type then name.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, parent_id, user_id, created_at
		 FROM categories
		 WHERE user_id IS NULL OR user_id = ?
		 ORDER BY type, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}

// DeleteCategory removes a category. Subcategories and budgets referencing
// it cascade away; transactions keep existing with a nulled category.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Category deleted", "id", id)
	return nil
}

// --- transactions ---

func (r *Repository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, amount_cents, type, category_id, description, date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Amount.Cents, string(t.Type), t.CategoryID, t.Description,
		t.Date.UTC().Unix(), now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction insert id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"user_id", t.UserID,
		"type", string(t.Type),
		"amount_cents", t.Amount.Cents)
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount_cents, type, category_id, description, date, created_at, updated_at
		 FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns the user's most recent transactions, date
// descending.
func (r *Repository) ListTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount_cents, type, category_id, description, date, created_at, updated_at
		 FROM transactions
		 WHERE user_id = ?
		 ORDER BY date DESC, id DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}

// DeleteTransaction removes a transaction and returns the deleted row so
// callers can publish it to the export audit queue.
func (r *Repository) DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := r.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "user_id", t.UserID)
	return t, nil
}

// --- budgets ---

func (r *Repository) CreateBudget(ctx context.Context, b *core.Budget) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, amount_cents, period, start_date, end_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, b.Amount.Cents, string(b.Period),
		b.StartDate.UTC().Format(dateLayout), b.EndDate.UTC().Format(dateLayout),
		now.Unix(), now.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrDuplicateBudgetScope
		}
		return fmt.Errorf("create budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("budget insert id: %w", err)
	}
	b.ID = id
	return nil
}

// ListBudgets returns the user's budgets, newest window first.
func (r *Repository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category_id, amount_cents, period, start_date, end_date, created_at, updated_at
		 FROM budgets
		 WHERE user_id = ?
		 ORDER BY start_date DESC, category_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return budgets, nil
}

// --- aggregation queries ---

// SumByTypeAndUser sums all of the user's transactions of one type. An
// empty result is zero, not an error.
func (r *Repository) SumByTypeAndUser(ctx context.Context, userID string, typ core.TxnType) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE user_id = ? AND type = ?",
		userID, string(typ)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum by type: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// ExpenseStatsByCategorySince groups the user's expense transactions dated
// at or after since by category, ordered by summed amount descending with
// category name as the tie-break (uncategorized last).
func (r *Repository) ExpenseStatsByCategorySince(ctx context.Context, userID string, since time.Time) ([]core.CategoryStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, COALESCE(SUM(t.amount_cents), 0) AS total, COUNT(*)
		 FROM transactions t
		 LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ? AND t.type = 'expense' AND t.date >= ?
		 GROUP BY t.category_id
		 ORDER BY total DESC, c.name IS NULL, c.name`,
		userID, since.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("expense stats by category: %w", err)
	}
	defer rows.Close()

	var stats []core.CategoryStat
	for rows.Next() {
		var name sql.NullString
		var s core.CategoryStat
		if err := rows.Scan(&name, &s.Total.Cents, &s.Count); err != nil {
			return nil, fmt.Errorf("scan category stat: %w", err)
		}
		if name.Valid {
			s.CategoryName = &name.String
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category stats: %w", err)
	}
	return stats, nil
}

// ActiveBudget is a budget joined with its category name for dashboard
// output.
type ActiveBudget struct {
	core.Budget
	CategoryName string
}

// ActiveBudgetsForUser returns budgets whose window contains today
// (inclusive on both ends), ordered by start date then category name.
func (r *Repository) ActiveBudgetsForUser(ctx context.Context, userID string, today time.Time) ([]ActiveBudget, error) {
	day := today.UTC().Format(dateLayout)
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.user_id, b.category_id, b.amount_cents, b.period, b.start_date, b.end_date,
		        b.created_at, b.updated_at, c.name
		 FROM budgets b
		 JOIN categories c ON c.id = b.category_id
		 WHERE b.user_id = ? AND b.start_date <= ? AND b.end_date >= ?
		 ORDER BY b.start_date, c.name`,
		userID, day, day)
	if err != nil {
		return nil, fmt.Errorf("active budgets: %w", err)
	}
	defer rows.Close()

	var budgets []ActiveBudget
	for rows.Next() {
		var ab ActiveBudget
		var startStr, endStr string
		var createdAt, updatedAt int64
		if err := rows.Scan(&ab.ID, &ab.UserID, &ab.CategoryID, &ab.Amount.Cents, &ab.Period,
			&startStr, &endStr, &createdAt, &updatedAt, &ab.CategoryName); err != nil {
			return nil, fmt.Errorf("scan active budget: %w", err)
		}
		if ab.StartDate, err = time.ParseInLocation(dateLayout, startStr, time.UTC); err != nil {
			return nil, fmt.Errorf("parse budget start date: %w", err)
		}
		if ab.EndDate, err = time.ParseInLocation(dateLayout, endStr, time.UTC); err != nil {
			return nil, fmt.Errorf("parse budget end date: %w", err)
		}
		ab.CreatedAt = time.Unix(createdAt, 0).UTC()
		ab.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		budgets = append(budgets, ab)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active budgets: %w", err)
	}
	return budgets, nil
}

// ExpenseSumForCategoryInRange sums the user's expense transactions in one
// category with date within [from, to], to-inclusive at day granularity.
func (r *Repository) ExpenseSumForCategoryInRange(ctx context.Context, userID string, categoryID int64, from, to time.Time) (core.Money, error) {
	toExclusive := core.DateOnly(to).AddDate(0, 0, 1)
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0)
		 FROM transactions
		 WHERE user_id = ? AND type = 'expense' AND category_id = ? AND date >= ? AND date < ?`,
		userID, categoryID, core.DateOnly(from).Unix(), toExclusive.Unix()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("expense sum for category: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// --- export bookkeeping ---

const (
	exportPending = 0
	exportDone    = 1
	exportFailed  = 2
)

// PendingExport is the minimal row the export worker needs to pick up a
// transaction that has not reached the backup sheet yet.
type PendingExport struct {
	ID       int64
	Attempts int64
}

// PendingExportTransactions returns rows that still need exporting: never
// attempted, or failed fewer than maxAttempts times. Rows at the cap stay
// failed and are left alone.
func (r *Repository) PendingExportTransactions(ctx context.Context, maxAttempts, limit int) ([]PendingExport, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, export_attempts
		 FROM transactions
		 WHERE export_state <> ? AND export_attempts < ?
		 ORDER BY id
		 LIMIT ?`, exportDone, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("pending export transactions: %w", err)
	}
	defer rows.Close()

	var pending []PendingExport
	for rows.Next() {
		var p PendingExport
		if err := rows.Scan(&p.ID, &p.Attempts); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending exports: %w", err)
	}
	return pending, nil
}

func (r *Repository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET export_state = ? WHERE id = ?", exportDone, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

func (r *Repository) MarkExportError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET export_state = ?, export_attempts = export_attempts + 1 WHERE id = ?",
		exportFailed, id); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (core.Category, error) {
	var c core.Category
	var parentID sql.NullInt64
	var userID sql.NullString
	var createdAt int64
	if err := row.Scan(&c.ID, &c.Name, &c.Type, &parentID, &userID, &createdAt); err != nil {
		return core.Category{}, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.Int64
	}
	if userID.Valid {
		c.UserID = &userID.String
	}
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	return c, nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var t core.Transaction
	var categoryID sql.NullInt64
	var date, createdAt, updatedAt int64
	if err := row.Scan(&t.ID, &t.UserID, &t.Amount.Cents, &t.Type, &categoryID,
		&t.Description, &date, &createdAt, &updatedAt); err != nil {
		return core.Transaction{}, err
	}
	if categoryID.Valid {
		t.CategoryID = &categoryID.Int64
	}
	t.Date = time.Unix(date, 0).UTC()
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return t, nil
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var b core.Budget
	var startStr, endStr string
	var createdAt, updatedAt int64
	if err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount.Cents, &b.Period,
		&startStr, &endStr, &createdAt, &updatedAt); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.StartDate, err = time.ParseInLocation(dateLayout, startStr, time.UTC); err != nil {
		return core.Budget{}, fmt.Errorf("parse start date: %w", err)
	}
	if b.EndDate, err = time.ParseInLocation(dateLayout, endStr, time.UTC); err != nil {
		return core.Budget{}, fmt.Errorf("parse end date: %w", err)
	}
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	b.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return b, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if errors.As(err, &serr) && serr.Code() == sqliteConstraintUnique {
		return true
	}
	// Fallback for drivers that wrap the code away.
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

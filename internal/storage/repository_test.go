package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tally/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *Repository, id string) {
	t.Helper()
	if err := repo.CreateUser(context.Background(), core.User{ID: id, Name: id}); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func seedCategory(t *testing.T, repo *Repository, name string, typ core.TxnType, userID string) int64 {
	t.Helper()
	c := core.Category{Name: name, Type: typ}
	if userID != "" {
		c.UserID = &userID
	}
	if err := repo.CreateCategory(context.Background(), &c); err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
	return c.ID
}

func seedTransaction(t *testing.T, repo *Repository, userID string, typ core.TxnType, cents int64, categoryID *int64, date time.Time) int64 {
	t.Helper()
	txn := core.Transaction{
		UserID:     userID,
		Amount:     core.Money{Cents: cents},
		Type:       typ,
		CategoryID: categoryID,
		Date:       date,
	}
	if err := repo.CreateTransaction(context.Background(), &txn); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return txn.ID
}

func TestTransactionRoundtrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	catID := seedCategory(t, repo, "Food", core.Expense, "alice")

	date := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	id := seedTransaction(t, repo, "alice", core.Expense, 4250, &catID, date)

	got, err := repo.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Amount.Cents != 4250 {
		t.Errorf("amount: want 4250, got %d", got.Amount.Cents)
	}
	if got.Type != core.Expense {
		t.Errorf("type: want expense, got %s", got.Type)
	}
	if got.CategoryID == nil || *got.CategoryID != catID {
		t.Errorf("category: want %d, got %v", catID, got.CategoryID)
	}
	if !got.Date.Equal(date) {
		t.Errorf("date: want %v, got %v", date, got.Date)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetTransaction(context.Background(), 999)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListTransactionsOrderedByDateDesc(t *testing.T) {
	repo := newTestRepo(t)
	seedUser(t, repo, "alice")

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedTransaction(t, repo, "alice", core.Expense, 100, nil, base)
	seedTransaction(t, repo, "alice", core.Expense, 200, nil, base.AddDate(0, 0, 5))
	seedTransaction(t, repo, "alice", core.Expense, 300, nil, base.AddDate(0, 0, 2))

	txns, err := repo.ListTransactions(context.Background(), "alice", 10)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("want 3 transactions, got %d", len(txns))
	}
	for i := 1; i < len(txns); i++ {
		if txns[i].Date.After(txns[i-1].Date) {
			t.Errorf("transactions out of order at %d: %v after %v", i, txns[i].Date, txns[i-1].Date)
		}
	}
}

func TestListTransactionsScopedToUser(t *testing.T) {
	repo := newTestRepo(t)
	seedUser(t, repo, "alice")
	seedUser(t, repo, "bob")
	date := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedTransaction(t, repo, "alice", core.Income, 100, nil, date)
	seedTransaction(t, repo, "bob", core.Income, 200, nil, date)

	txns, err := repo.ListTransactions(context.Background(), "alice", 10)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 1 || txns[0].UserID != "alice" {
		t.Fatalf("want only alice's transaction, got %+v", txns)
	}
}

func TestDeleteTransactionReturnsRow(t *testing.T) {
	repo := newTestRepo(t)
	seedUser(t, repo, "alice")
	id := seedTransaction(t, repo, "alice", core.Expense, 500, nil, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	deleted, err := repo.DeleteTransaction(context.Background(), id)
	if err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if deleted.Amount.Cents != 500 {
		t.Errorf("deleted amount: want 500, got %d", deleted.Amount.Cents)
	}
	if _, err := repo.GetTransaction(context.Background(), id); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("transaction should be gone, got %v", err)
	}
}

func TestDeleteCategoryNullsTransactionReference(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	catID := seedCategory(t, repo, "Food", core.Expense, "alice")
	txnID := seedTransaction(t, repo, "alice", core.Expense, 100, &catID, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	if err := repo.DeleteCategory(ctx, catID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}

	txn, err := repo.GetTransaction(ctx, txnID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if txn.CategoryID != nil {
		t.Errorf("category reference should be nulled, got %v", *txn.CategoryID)
	}
}

func TestDeleteCategoryCascadesToSubcategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	parentID := seedCategory(t, repo, "Food", core.Expense, "alice")

	child := core.Category{Name: "Groceries", Type: core.Expense, ParentID: &parentID}
	if err := repo.CreateCategory(ctx, &child); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	if err := repo.DeleteCategory(ctx, parentID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if _, err := repo.GetCategory(ctx, child.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("subcategory should cascade away, got %v", err)
	}
}

func TestListCategoriesIncludesSharedAndOwn(t *testing.T) {
	repo := newTestRepo(t)
	seedUser(t, repo, "alice")
	seedUser(t, repo, "bob")
	seedCategory(t, repo, "Salary", core.Income, "")
	seedCategory(t, repo, "Food", core.Expense, "alice")
	seedCategory(t, repo, "Gadgets", core.Expense, "bob")

	cats, err := repo.ListCategories(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("want shared + own = 2 categories, got %d", len(cats))
	}
	for _, c := range cats {
		if c.Name == "Gadgets" {
			t.Error("another user's category leaked into the list")
		}
	}
}

func TestCreateBudgetDuplicateScope(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	catID := seedCategory(t, repo, "Food", core.Expense, "alice")

	b := core.Budget{
		UserID:     "alice",
		CategoryID: catID,
		Amount:     core.Money{Cents: 50000},
		Period:     core.Monthly,
		StartDate:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.CreateBudget(ctx, &b); err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	dup := b
	dup.ID = 0
	dup.Amount = core.Money{Cents: 60000}
	if err := repo.CreateBudget(ctx, &dup); !errors.Is(err, core.ErrDuplicateBudgetScope) {
		t.Fatalf("want ErrDuplicateBudgetScope, got %v", err)
	}

	// Same category, different window is fine.
	next := b
	next.ID = 0
	next.StartDate = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	next.EndDate = time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	if err := repo.CreateBudget(ctx, &next); err != nil {
		t.Fatalf("CreateBudget next window: %v", err)
	}
}

func TestSumByTypeAndUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	date := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedTransaction(t, repo, "alice", core.Income, 100000, nil, date)
	seedTransaction(t, repo, "alice", core.Expense, 30000, nil, date)
	seedTransaction(t, repo, "alice", core.Expense, 10000, nil, date)

	income, err := repo.SumByTypeAndUser(ctx, "alice", core.Income)
	if err != nil {
		t.Fatalf("SumByTypeAndUser income: %v", err)
	}
	if income.Cents != 100000 {
		t.Errorf("income: want 100000, got %d", income.Cents)
	}

	expense, err := repo.SumByTypeAndUser(ctx, "alice", core.Expense)
	if err != nil {
		t.Fatalf("SumByTypeAndUser expense: %v", err)
	}
	if expense.Cents != 40000 {
		t.Errorf("expense: want 40000, got %d", expense.Cents)
	}

	empty, err := repo.SumByTypeAndUser(ctx, "nobody", core.Income)
	if err != nil {
		t.Fatalf("SumByTypeAndUser empty: %v", err)
	}
	if empty.Cents != 0 {
		t.Errorf("empty sum: want 0, got %d", empty.Cents)
	}
}

func TestExpenseStatsByCategorySince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	foodID := seedCategory(t, repo, "Food", core.Expense, "alice")
	transportID := seedCategory(t, repo, "Transport", core.Expense, "alice")

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	since := now.AddDate(0, 0, -30)

	seedTransaction(t, repo, "alice", core.Expense, 30000, &foodID, now.AddDate(0, 0, -20))
	seedTransaction(t, repo, "alice", core.Expense, 5000, &transportID, now.AddDate(0, 0, -10))
	seedTransaction(t, repo, "alice", core.Expense, 2000, nil, now.AddDate(0, 0, -5))
	// Outside the window, must not count.
	seedTransaction(t, repo, "alice", core.Expense, 99999, &transportID, now.AddDate(0, 0, -40))
	// Income never appears in the breakdown.
	seedTransaction(t, repo, "alice", core.Income, 100000, nil, now.AddDate(0, 0, -3))

	stats, err := repo.ExpenseStatsByCategorySince(ctx, "alice", since)
	if err != nil {
		t.Fatalf("ExpenseStatsByCategorySince: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("want 3 groups, got %d: %+v", len(stats), stats)
	}
	if stats[0].CategoryName == nil || *stats[0].CategoryName != "Food" || stats[0].Total.Cents != 30000 {
		t.Errorf("first group: want Food 30000, got %+v", stats[0])
	}
	if stats[1].CategoryName == nil || *stats[1].CategoryName != "Transport" || stats[1].Total.Cents != 5000 {
		t.Errorf("second group: want Transport 5000, got %+v", stats[1])
	}
	if stats[2].CategoryName != nil || stats[2].Total.Cents != 2000 {
		t.Errorf("third group: want uncategorized 2000, got %+v", stats[2])
	}
}

// Equal totals break the tie by category name ascending, with the
// uncategorized group last.
func TestExpenseStatsTieBreakByName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	zooID := seedCategory(t, repo, "Zoo", core.Expense, "alice")
	barID := seedCategory(t, repo, "Bar", core.Expense, "alice")

	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	day := now.AddDate(0, 0, -5)
	seedTransaction(t, repo, "alice", core.Expense, 5000, &zooID, day)
	seedTransaction(t, repo, "alice", core.Expense, 5000, &barID, day)
	seedTransaction(t, repo, "alice", core.Expense, 5000, nil, day)

	stats, err := repo.ExpenseStatsByCategorySince(ctx, "alice", now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("ExpenseStatsByCategorySince: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("want 3 groups, got %d: %+v", len(stats), stats)
	}
	for i, want := range []string{"Bar", "Zoo"} {
		if stats[i].CategoryName == nil || *stats[i].CategoryName != want {
			t.Errorf("group %d: want %s, got %+v", i, want, stats[i])
		}
	}
	if stats[2].CategoryName != nil {
		t.Errorf("uncategorized group must sort last, got %+v", stats[2])
	}
}

func TestActiveBudgetsForUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	foodID := seedCategory(t, repo, "Food", core.Expense, "alice")
	tripID := seedCategory(t, repo, "Travel", core.Expense, "alice")

	mk := func(catID int64, start, end time.Time) {
		b := core.Budget{
			UserID: "alice", CategoryID: catID,
			Amount: core.Money{Cents: 10000}, Period: core.Monthly,
			StartDate: start, EndDate: end,
		}
		if err := repo.CreateBudget(ctx, &b); err != nil {
			t.Fatalf("CreateBudget: %v", err)
		}
	}

	today := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	mk(foodID, today.AddDate(0, 0, -14), today.AddDate(0, 0, 16))
	// Ends exactly today, still active.
	mk(tripID, today.AddDate(0, 0, -30), today)

	expired := core.Budget{
		UserID: "alice", CategoryID: foodID,
		Amount: core.Money{Cents: 10000}, Period: core.Monthly,
		StartDate: today.AddDate(0, -2, 0), EndDate: today.AddDate(0, -1, 0),
	}
	if err := repo.CreateBudget(ctx, &expired); err != nil {
		t.Fatalf("CreateBudget expired: %v", err)
	}

	active, err := repo.ActiveBudgetsForUser(ctx, "alice", today)
	if err != nil {
		t.Fatalf("ActiveBudgetsForUser: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("want 2 active budgets, got %d", len(active))
	}
	names := map[string]bool{}
	for _, ab := range active {
		names[ab.CategoryName] = true
	}
	if !names["Food"] || !names["Travel"] {
		t.Errorf("want Food and Travel active, got %v", names)
	}
}

func TestExpenseSumForCategoryInRange(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	foodID := seedCategory(t, repo, "Food", core.Expense, "alice")

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	seedTransaction(t, repo, "alice", core.Expense, 1000, &foodID, from)
	// Late on the last day still counts, the range is day inclusive.
	seedTransaction(t, repo, "alice", core.Expense, 2000, &foodID, to.Add(23*time.Hour))
	// One day past the end does not.
	seedTransaction(t, repo, "alice", core.Expense, 4000, &foodID, to.AddDate(0, 0, 1))

	sum, err := repo.ExpenseSumForCategoryInRange(ctx, "alice", foodID, from, to)
	if err != nil {
		t.Fatalf("ExpenseSumForCategoryInRange: %v", err)
	}
	if sum.Cents != 3000 {
		t.Errorf("want 3000, got %d", sum.Cents)
	}
}

func TestExportStateLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "alice")
	date := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	id1 := seedTransaction(t, repo, "alice", core.Expense, 100, nil, date)
	id2 := seedTransaction(t, repo, "alice", core.Expense, 200, nil, date)

	pending, err := repo.PendingExportTransactions(ctx, 5, 10)
	if err != nil {
		t.Fatalf("PendingExportTransactions: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("want 2 pending, got %d", len(pending))
	}

	if err := repo.MarkExported(ctx, id1); err != nil {
		t.Fatalf("MarkExported: %v", err)
	}
	if err := repo.MarkExportError(ctx, id2); err != nil {
		t.Fatalf("MarkExportError: %v", err)
	}

	// The exported row is done; the failed one is retried until the cap.
	pending, err = repo.PendingExportTransactions(ctx, 5, 10)
	if err != nil {
		t.Fatalf("PendingExportTransactions: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id2 || pending[0].Attempts != 1 {
		t.Fatalf("want failed row pending with 1 attempt, got %+v", pending)
	}

	// At the attempt cap the row is left alone.
	pending, err = repo.PendingExportTransactions(ctx, 1, 10)
	if err != nil {
		t.Fatalf("PendingExportTransactions: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("want 0 pending at the attempt cap, got %+v", pending)
	}
}

package core

// CategoryStat is one group of the 30-day expense breakdown. CategoryName is
// nil for uncategorized transactions.
type CategoryStat struct {
	CategoryName *string
	Total        Money
	Count        int64
}

// BudgetComparison compares one active budget against actual spend in its
// category and window. Remaining is negative when over budget.
type BudgetComparison struct {
	Category     string
	BudgetAmount Money
	ActualSpent  Money
	Remaining    Money
}

// DashboardSummary is the aggregated read-model for one user: all-time
// totals, the recent category breakdown, and budget-vs-actual for every
// budget active at the reference time.
type DashboardSummary struct {
	Balance          Money
	IncomeTotal      Money
	ExpenseTotal     Money
	CategoryStats    []CategoryStat
	BudgetComparison []BudgetComparison
}

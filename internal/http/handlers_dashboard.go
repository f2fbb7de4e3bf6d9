package http

import (
	"net/http"
	"strings"
	"time"

	"tally/internal/core"
)

type categoryStatResponse struct {
	Category *string `json:"category"`
	Total    string  `json:"total"`
	Count    int64   `json:"count"`
}

type budgetComparisonResponse struct {
	Category    string `json:"category"`
	Budget      string `json:"budget"`
	ActualSpent string `json:"actual_spent"`
	Remaining   string `json:"remaining"`
}

type dashboardResponse struct {
	Balance          string                     `json:"balance"`
	IncomeTotal      string                     `json:"income_total"`
	ExpenseTotal     string                     `json:"expense_total"`
	CategoryStats    []categoryStatResponse     `json:"category_stats"`
	BudgetComparison []budgetComparisonResponse `json:"budget_comparison"`
}

// handleDashboard aggregates the user's summary. An optional ?now= date
// overrides the reference time, mainly for reproducible reads.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := identify(r)
	if err != nil {
		writeBadRequest(w, "user_id", err)
		return
	}

	now := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("now")); raw != "" {
		now, err = parseDate(raw)
		if err != nil {
			writeBadRequest(w, "now", err)
			return
		}
	}

	summary, err := s.deps.Dashboard.Summary(r.Context(), userID, now)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDashboardResponse(summary))
}

func toDashboardResponse(d core.DashboardSummary) dashboardResponse {
	stats := make([]categoryStatResponse, 0, len(d.CategoryStats))
	for _, s := range d.CategoryStats {
		stats = append(stats, categoryStatResponse{
			Category: s.CategoryName,
			Total:    s.Total.String(),
			Count:    s.Count,
		})
	}

	comparisons := make([]budgetComparisonResponse, 0, len(d.BudgetComparison))
	for _, c := range d.BudgetComparison {
		comparisons = append(comparisons, budgetComparisonResponse{
			Category:    c.Category,
			Budget:      c.BudgetAmount.String(),
			ActualSpent: c.ActualSpent.String(),
			Remaining:   c.Remaining.String(),
		})
	}

	return dashboardResponse{
		Balance:          d.Balance.String(),
		IncomeTotal:      d.IncomeTotal.String(),
		ExpenseTotal:     d.ExpenseTotal.String(),
		CategoryStats:    stats,
		BudgetComparison: comparisons,
	}
}

package http

import (
	"net/http"
	"time"

	"tally/internal/core"
)

type budgetRequest struct {
	CategoryID int64  `json:"category_id"`
	Amount     string `json:"amount"`
	Period     string `json:"period"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

type budgetResponse struct {
	ID         int64  `json:"id"`
	CategoryID int64  `json:"category_id"`
	Amount     string `json:"amount"`
	Period     string `json:"period"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:         b.ID,
		CategoryID: b.CategoryID,
		Amount:     b.Amount.String(),
		Period:     string(b.Period),
		StartDate:  b.StartDate.UTC().Format(time.DateOnly),
		EndDate:    b.EndDate.UTC().Format(time.DateOnly),
	}
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	userID, err := identify(r)
	if err != nil {
		writeBadRequest(w, "user_id", err)
		return
	}

	var req budgetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "", err)
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeBadRequest(w, "start_date", err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		writeBadRequest(w, "end_date", err)
		return
	}

	if _, err := s.deps.Users.Ensure(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.deps.Budgets.Create(r.Context(), core.Budget{
		UserID:     userID,
		CategoryID: req.CategoryID,
		Amount:     core.Money{Cents: cents},
		Period:     core.BudgetPeriod(req.Period),
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBudgetResponse(created))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, err := identify(r)
	if err != nil {
		writeBadRequest(w, "user_id", err)
		return
	}

	budgets, err := s.deps.Budgets.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, toBudgetResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

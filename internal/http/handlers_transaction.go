package http

import (
	"net/http"
	"strings"
	"time"

	"tally/internal/core"
)

type transactionRequest struct {
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	CategoryID  *int64 `json:"category_id"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

type transactionResponse struct {
	ID          int64     `json:"id"`
	Amount      string    `json:"amount"`
	Type        string    `json:"type"`
	CategoryID  *int64    `json:"category_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Amount:      t.Amount.String(),
		Type:        string(t.Type),
		CategoryID:  t.CategoryID,
		Description: t.Description,
		Date:        t.Date.UTC().Format(time.DateOnly),
		CreatedAt:   t.CreatedAt,
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := identify(r)
	if err != nil {
		writeBadRequest(w, "user_id", err)
		return
	}

	var req transactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, "", err)
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// An omitted date defaults to now, filled in by the service.
	var date time.Time
	if strings.TrimSpace(req.Date) != "" {
		date, err = parseDate(req.Date)
		if err != nil {
			writeBadRequest(w, "date", err)
			return
		}
	}

	if _, err := s.deps.Users.Ensure(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.deps.Transactions.Create(r.Context(), core.Transaction{
		UserID:      userID,
		Amount:      core.Money{Cents: cents},
		Type:        core.TxnType(req.Type),
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Date:        date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := identify(r)
	if err != nil {
		writeBadRequest(w, "user_id", err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeBadRequest(w, "limit", err)
		return
	}

	txns, err := s.deps.Transactions.List(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := identify(r)
	if err != nil {
		writeBadRequest(w, "user_id", err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "id", err)
		return
	}

	t, err := s.deps.Transactions.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := identify(r)
	if err != nil {
		writeBadRequest(w, "user_id", err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeBadRequest(w, "id", err)
		return
	}

	if err := s.deps.Transactions.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

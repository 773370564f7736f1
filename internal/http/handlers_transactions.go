package http

import (
	"fmt"
	"net/http"

	"meurenda/internal/core"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.finance.Transactions(ParseTypeFilter(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.Input()
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx, err := s.finance.AddTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeMutation(w, http.StatusCreated, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeMutation(w, http.StatusOK, map[string]string{"deleted": r.PathValue("id")})
}

// handleClearTransactions requires ?type= so that a bare DELETE never wipes
// the whole ledger.
func (s *Server) handleClearTransactions(w http.ResponseWriter, r *http.Request) {
	typ := ParseTypeFilter(r.URL.Query())
	if typ == "" {
		writeError(w, r, fmt.Errorf("%w: type is required", errBadRequest))
		return
	}
	n, err := s.finance.ClearTransactions(r.Context(), typ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeMutation(w, http.StatusOK, map[string]any{"type": typ, "removed": n})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.ExpenseCategories)
}

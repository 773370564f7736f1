package http

import (
	"net/http"

	applog "meurenda/internal/log"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.finance.Dashboard())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q, err := ParseReportQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := s.finance.Report(q.Period, q.Custom)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Report built",
		applog.FieldPeriod, string(q.Period),
		applog.FieldCount, len(rep.Transactions))
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.finance.Reset(r.Context())
	s.writeMutation(w, http.StatusOK, map[string]string{"status": "reset"})
}

package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cuipo/internal/core"
	"cuipo/internal/dashboard"
	"cuipo/internal/export"
	"cuipo/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether the page can render and the catalog is loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	checks := map[string]any{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if cat := s.svc.Catalog(); cat == nil || len(cat.Entities()) == 0 || len(cat.Periods()) == 0 {
		checks["catalog"] = "failed: catalog is empty"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["catalog"] = map[string]int{
			"entities": len(cat.Entities()),
			"periods":  len(cat.Periods()),
			"accounts": len(cat.Accounts()),
		}
	}
	if sessions := s.svc.Sessions(); sessions != nil {
		checks["sessions"] = sessions.Len()
	}
	checks["security"] = s.metrics.snapshot()

	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}

func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.svc.Catalog().Departments()).Write(w)
}

// handleEntities lists entities. ?department= narrows to that department's
// municipalities; ?level=gobernacion lists governorates.
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	cat := s.svc.Catalog()
	q := r.URL.Query()
	dept := sanitizeInput(q.Get("department"))

	var entities []core.Entity
	switch core.Level(strings.ToLower(sanitizeInput(q.Get("level")))) {
	case core.Governorate:
		entities = cat.Governorates()
	case core.Municipality:
		entities = cat.Municipalities(dept)
	case "":
		if dept != "" {
			entities = cat.Municipalities(dept)
		} else {
			entities = cat.Entities()
		}
	default:
		ErrorResponse(http.StatusBadRequest, fmt.Sprintf("nivel desconocido %q", q.Get("level"))).Write(w)
		return
	}
	NewJSONResponse().Body(entityViews(entities)).Write(w)
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(periodViews(s.svc.Catalog().Periods())).Write(w)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	parent := sanitizeInput(r.URL.Query().Get("parent"))
	if parent == "" {
		NewJSONResponse().Body(accountViews(s.svc.Catalog().Accounts())).Write(w)
		return
	}
	accounts, err := s.svc.Catalog().Subaccounts(parent)
	if err != nil {
		ResponseForError(err).Write(w)
		return
	}
	NewJSONResponse().Body(accountViews(accounts)).Write(w)
}

func (s *Server) handleOperation(op dashboard.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.runOperation(w, r, op)
	}
}

// handleNamedOperation dispatches POST /api/operations/{op} by name.
func (s *Server) handleNamedOperation(w http.ResponseWriter, r *http.Request) {
	op, err := dashboard.ParseOperation(r.PathValue("op"))
	if err != nil {
		ResponseForError(err).Write(w)
		return
	}
	s.runOperation(w, r, op)
}

func (s *Server) runOperation(w http.ResponseWriter, r *http.Request, op dashboard.Operation) {
	req, err := parseLoadRequest(r)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			ResponseForError(err).Write(w)
			return
		}
		ErrorResponse(http.StatusBadRequest, "formato de solicitud no válido").Write(w)
		return
	}
	req.Selection.SessionID = s.ensureSession(w, r)

	res, err := s.svc.Dispatch(r.Context(), op, req.Selection)
	if err != nil {
		resp := ResponseForError(err)
		if resp.statusCode == http.StatusInternalServerError {
			log.FromContext(r.Context()).LogError(r.Context(), "Operation failed unexpectedly", err, op.String(),
				log.NewFields().WithSelection(req.Selection.EntityCode, req.Selection.PeriodCode))
		}
		resp.Write(w)
		return
	}
	NewJSONResponse().Body(resultView(res, req.Scale)).Write(w)
}

// handleExport serves the workbook of the session's last op result.
func (s *Server) handleExport(op dashboard.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.FromContext(r.Context()).WithComponent(log.ComponentExport)

		res, ok := s.sessionResult(r, op)
		if !ok {
			ErrorResponse(http.StatusNotFound, "No hay resultados cargados para exportar.").Write(w)
			return
		}

		var (
			body []byte
			name string
			err  error
		)
		switch {
		case res.Expense != nil:
			e := res.Expense
			body, err = export.ExpenseWorkbook(e.Raw, e.Summary, e.Detail, e.Consolidated)
			name = fmt.Sprintf("gastos_%s_%s.xlsx", e.Entity.Code, e.Period.Code)
		case res.Revenue != nil:
			rv := res.Revenue
			body, err = export.RevenueWorkbook(rv.Raw, rv.Summary)
			name = fmt.Sprintf("ingresos_%s_%s.xlsx", rv.Entity.Code, rv.Period.Code)
		default:
			ErrorResponse(http.StatusNotFound, "No hay resultados cargados para exportar.").Write(w)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "Workbook export failed",
				log.FieldOperation, log.OpExport,
				log.FieldError, err.Error())
			ErrorResponse(http.StatusInternalServerError, "no se pudo generar el archivo").Write(w)
			return
		}

		logger.InfoContext(r.Context(), "Workbook exported",
			log.FieldOperation, log.OpExport,
			"bytes", len(body),
			"file", name)
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func (s *Server) sessionResult(r *http.Request, op dashboard.Operation) (dashboard.Result, bool) {
	sessions := s.svc.Sessions()
	id := sessionID(r)
	if sessions == nil || id == "" {
		return dashboard.Result{}, false
	}
	ws, ok := sessions.Get(id)
	if !ok {
		return dashboard.Result{}, false
	}
	return ws.Result(op)
}

// handleResetSession discards the caller's working set.
func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	if id := sessionID(r); id != "" && s.svc.Sessions() != nil {
		s.svc.Sessions().Drop(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appscans "github.com/bryanwahyu/n0dr1e/internal/application/scans"
	domain "github.com/bryanwahyu/n0dr1e/internal/domain/scans"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
	"github.com/bryanwahyu/n0dr1e/internal/middleware"
)

// GET /v1/{user}/profile
func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) error {
	p, err := r.scansSvc.Profile(req.Context(), chi.URLParam(req, "user"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

// POST /v1/{user}/scans
// Body: {"type": "quick|full|custom", "path": "/home/user"}
func (r *Router) handleStartScan(w http.ResponseWriter, req *http.Request) error {
	const op = "scans.start"
	user := chi.URLParam(req, "user")

	var body struct {
		Type string `json:"type"`
		Path string `json:"path"`
	}
	if err := decodeBody(req, op, &body); err != nil {
		return err
	}
	if err := middleware.ValidateScanType(body.Type); err != nil {
		return errors.Validation(op, err.Error())
	}
	path := middleware.SanitizeString(body.Path)
	if err := middleware.ValidatePath(path); err != nil {
		return errors.Validation(op, err.Error())
	}

	snap, err := r.scansSvc.StartScan(req.Context(), appscans.StartScanCommand{
		UserID: user,
		Type:   body.Type,
		Path:   path,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, snap)
	return nil
}

// GET /v1/{user}/scans/current
func (r *Router) handleCurrent(w http.ResponseWriter, req *http.Request) error {
	writeJSON(w, http.StatusOK, r.scansSvc.Current(chi.URLParam(req, "user")))
	return nil
}

// DELETE /v1/{user}/scans/current
func (r *Router) handleStopScan(w http.ResponseWriter, req *http.Request) error {
	snap, err := r.scansSvc.StopScan(req.Context(), chi.URLParam(req, "user"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, snap)
	return nil
}

// GET /v1/{user}/scans?limit=10
// GET /v1/{user}/scans?page=1&page_size=20
func (r *Router) handleListScans(w http.ResponseWriter, req *http.Request) error {
	user := chi.URLParam(req, "user")
	q := req.URL.Query()

	if q.Has("page") || q.Has("page_size") {
		page, err := intParam(q.Get("page"), "page")
		if err != nil {
			return err
		}
		size, err := intParam(q.Get("page_size"), "page_size")
		if err != nil {
			return err
		}
		res, err := r.scansSvc.Paginate(req.Context(), user, page, size)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, res)
		return nil
	}

	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		return err
	}
	list, err := r.scansSvc.Latest(req.Context(), user, limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/{user}/scans/{id}
func (r *Router) handleGetScan(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateRecordID("scan", id); err != nil {
		return errors.Validation("scans.get", err.Error())
	}
	scan, err := r.scansSvc.Get(req.Context(), chi.URLParam(req, "user"), domain.ScanID(id))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, scan)
	return nil
}

// GET /v1/{user}/summary?days=30
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	days, err := intParam(req.URL.Query().Get("days"), "days")
	if err != nil {
		return err
	}
	summary, err := r.scansSvc.Summary(req.Context(), chi.URLParam(req, "user"), days)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, summary)
	return nil
}

// intParam parses an optional integer query parameter; empty means 0 so the
// service applies its default.
func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Validation("http.query", name+" must be an integer")
	}
	return v, nil
}

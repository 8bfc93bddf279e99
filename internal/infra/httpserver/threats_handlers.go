package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appthreats "github.com/bryanwahyu/n0dr1e/internal/application/threats"
	"github.com/bryanwahyu/n0dr1e/internal/domain/scans"
	domain "github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
	"github.com/bryanwahyu/n0dr1e/internal/middleware"
)

// GET /v1/{user}/threats?status=detected
func (r *Router) handleListThreats(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	list, err := r.threatsSvc.List(req.Context(), chi.URLParam(req, "user"), domain.Filter{
		Status: domain.Status(q.Get("status")),
		ScanID: scans.ScanID(q.Get("scan_id")),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// POST /v1/{user}/threats/{id}/quarantine
// Body (optional): {"file_path": "/home/user/evil.exe"}
func (r *Router) handleQuarantine(w http.ResponseWriter, req *http.Request) error {
	const op = "threats.quarantine"
	id, err := threatID(req, op)
	if err != nil {
		return err
	}
	var body struct {
		FilePath string `json:"file_path"`
	}
	if err := decodeBody(req, op, &body); err != nil {
		return err
	}
	path := middleware.SanitizeString(body.FilePath)
	if err := middleware.ValidatePath(path); err != nil {
		return errors.Validation(op, err.Error())
	}

	list, err := r.threatsSvc.Quarantine(req.Context(), appthreats.QuarantineCommand{
		UserID:   chi.URLParam(req, "user"),
		ThreatID: id,
		FilePath: path,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// POST /v1/{user}/threats/{id}/delete
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	id, err := threatID(req, "threats.delete")
	if err != nil {
		return err
	}
	list, err := r.threatsSvc.Delete(req.Context(), chi.URLParam(req, "user"), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// POST /v1/{user}/threats/{id}/ignore
func (r *Router) handleIgnore(w http.ResponseWriter, req *http.Request) error {
	id, err := threatID(req, "threats.ignore")
	if err != nil {
		return err
	}
	list, err := r.threatsSvc.Ignore(req.Context(), chi.URLParam(req, "user"), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/{user}/threats/{id}/advice
func (r *Router) handleAdvice(w http.ResponseWriter, req *http.Request) error {
	id, err := threatID(req, "ai.advise")
	if err != nil {
		return err
	}
	if r.aiSvc == nil {
		return errors.Unavailable("ai.advise", "threat advisor is not configured")
	}
	adv, err := r.aiSvc.Advise(req.Context(), chi.URLParam(req, "user"), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, adv)
	return nil
}

// GET /v1/{user}/quarantine
func (r *Router) handleListQuarantine(w http.ResponseWriter, req *http.Request) error {
	list, err := r.threatsSvc.ListQuarantine(req.Context(), chi.URLParam(req, "user"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func threatID(req *http.Request, op string) (domain.ThreatID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateRecordID("threat", id); err != nil {
		return "", errors.Validation(op, err.Error())
	}
	return domain.ThreatID(id), nil
}

package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/diewo77/nexusbilling/httpx"
	"github.com/diewo77/nexusbilling/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const flashCookie = "flash"

// setFlash stores a one-shot notice shown by the next rendered page.
func setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: url.QueryEscape(msg), Path: "/", HttpOnly: true})
}

// popFlash returns the pending notice and clears it.
func popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, to, msg string) {
	setFlash(w, msg)
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// idParam reads the {id} route parameter.
func idParam(r *http.Request) (uint, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// jsonFail writes err as a JSON error body with the matching status.
func jsonFail(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		ve *services.ValidationError
		se *services.StorageError
	)
	switch {
	case errors.As(err, &ve):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", ve.Violations)
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.As(err, &se):
		log.Error("storage failure", zap.String("op", se.Op), zap.Error(se.Err))
		httpx.JSONError(w, http.StatusInternalServerError, "storage_error", nil)
	default:
		log.Error("request failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// htmlFail handles errors that have no form to re-render: not found
// becomes a notice on the fallback page, anything else a plain 500.
func htmlFail(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error, fallback string) {
	if errors.Is(err, services.ErrNotFound) {
		redirectWithFlash(w, r, fallback, capitalize(err.Error()))
		return
	}
	if ve, ok := services.IsValidation(err); ok {
		redirectWithFlash(w, r, fallback, ve.Error())
		return
	}
	log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

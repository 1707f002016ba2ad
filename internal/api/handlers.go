package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/models"
	"github.com/shintairiku/instagram-analysis/pkg/sync"
)

var validate = validator.New()

type triggerDailyRequest struct {
	TargetDate string `json:"target_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

type refreshRequest struct {
	WindowDays int  `json:"window_days,omitempty" validate:"omitempty,min=1,max=90"`
	MaxPosts   int  `json:"max_posts,omitempty" validate:"omitempty,min=1,max=200"`
	Force      bool `json:"force,omitempty"`
	DryRun     bool `json:"dry_run,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTriggerDaily(w http.ResponseWriter, r *http.Request) {
	var req triggerDailyRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", errs.ErrorTypeValidation)
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "target_date must be YYYY-MM-DD", errs.ErrorTypeValidation)
		return
	}

	// default to yesterday, the last complete day; snapshotting the
	// current day would store partial counts
	target := models.DateOf(time.Now().UTC().AddDate(0, 0, -1))
	if req.TargetDate != "" {
		var err error
		target, err = models.ParseDate(req.TargetDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "target_date must be YYYY-MM-DD", errs.ErrorTypeValidation)
			return
		}
	}

	// the run outlives the request, so it must not inherit the request ctx
	runID, err := s.collector.Start(context.Background(), target, sync.CollectOptions{DryRun: req.DryRun})
	if err != nil {
		writeTypedError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id":      runID,
		"target_date": target.String(),
		"dry_run":     req.DryRun,
		"status":      "accepted",
	})
}

func (s *Server) handleDailyStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Status())
}

func (s *Server) handleRefreshAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req refreshRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", errs.ErrorTypeValidation)
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "window_days must be 1..90 and max_posts 1..200", errs.ErrorTypeValidation)
		return
	}

	result, err := s.syncer.Sync(r.Context(), accountID, sync.SyncOptions{
		WindowDays: req.WindowDays,
		MaxPosts:   req.MaxPosts,
		Force:      req.Force,
		DryRun:     req.DryRun,
	})
	if err != nil {
		writeTypedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// requireToken checks the shared collection token, accepted either as
// a bearer credential or in X-Collection-Token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.CollectionToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Collection-Token")
		if token == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if token != s.cfg.CollectionToken {
			writeError(w, http.StatusUnauthorized, "invalid or missing collection token", errs.ErrorTypeAuth)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeTypedError maps the error taxonomy onto HTTP statuses. Rate
// limit errors carry a Retry-After header.
func writeTypedError(w http.ResponseWriter, err error) {
	var typed *errs.Error
	if !stderrors.As(err, &typed) {
		writeError(w, http.StatusInternalServerError, err.Error(), errs.ErrorTypeUnknown)
		return
	}

	status := http.StatusInternalServerError
	switch typed.Type {
	case errs.ErrorTypeNotFound:
		status = http.StatusNotFound
	case errs.ErrorTypeConflict:
		status = http.StatusConflict
	case errs.ErrorTypeValidation:
		status = http.StatusBadRequest
	case errs.ErrorTypeAuth:
		status = http.StatusUnauthorized
	case errs.ErrorTypeRateLimit:
		status = http.StatusTooManyRequests
		if typed.RetryAfter > 0 {
			seconds := int(typed.RetryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
	}

	writeError(w, status, typed.Message, typed.Type)
}

func writeError(w http.ResponseWriter, status int, msg string, errorType errs.ErrorType) {
	writeJSON(w, status, errorResponse{Error: msg, Type: string(errorType)})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Fprintf(w, `{"error":"encoding failed"}`)
	}
}

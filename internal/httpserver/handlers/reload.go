package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkmetrics/internal/index"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
	"github.com/MrSnakeDoc/linkmetrics/internal/provider"
)

// Reload triggers a manual refresh-all run of the scheduler
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.RefreshTrigger <- struct{}{}:
			d.Logger.Info("manual refresh triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
			if _, err := w.Write([]byte("✅ Refresh triggered successfully\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		default:
			d.Logger.Warn("refresh already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := w.Write([]byte("⏳ Refresh already in progress, please wait\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		}
	}
}

type refreshResponse struct {
	Service string        `json:"service"`
	Outcome string        `json:"outcome"`
	Profile *fragmentView `json:"profile,omitempty"`
}

type fragmentView struct {
	Identifier  string `json:"identifier,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	ProfileURL  string `json:"profile_url,omitempty"`
	PictureURL  string `json:"picture_url,omitempty"`
}

// RefreshService refreshes one linked service of a user from its provider.
// A second call on the same day reports "unchanged" and writes nothing.
func RefreshService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ownerID := chi.URLParam(r, "userID")
		service := domain.NormalizeServiceName(chi.URLParam(r, "service"))

		family, err := d.Dispatcher.Family(service)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		cred, err := d.Store.GetCredential(ctx, ownerID, family)
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("no %s credential for %s: %w", family, ownerID, domain.ErrNotFound)
		}
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		res, err := d.Dispatcher.Refresh(ctx, service, *cred, ownerID)
		if d.MemoryIndex != nil {
			d.MemoryIndex.Record(domain.ServiceKey{OwnerID: ownerID, Name: service}, string(res.Outcome), err, d.Now())
		}
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		resp := refreshResponse{Service: res.Service, Outcome: string(res.Outcome)}
		if res.Outcome == provider.OutcomeRefreshed && res.Fragment != nil {
			f := res.Fragment
			resp.Profile = &fragmentView{
				Identifier:  f.Identifier,
				Username:    f.Username,
				DisplayName: f.DisplayName,
				ProfileURL:  f.ProfileURL,
				PictureURL:  f.PictureURL,
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

type refreshStatusResponse struct {
	LastRun string        `json:"last_run"`
	Entries []index.Entry `json:"entries"`
}

// RefreshStatus lists the latest refresh outcome of every tracked service.
func RefreshStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := refreshStatusResponse{LastRun: "never", Entries: []index.Entry{}}
		if d.MemoryIndex != nil {
			if t := d.MemoryIndex.GetLastReload(); !t.IsZero() {
				resp.LastRun = t.UTC().Format(time.RFC3339)
			}
			resp.Entries = d.MemoryIndex.All()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

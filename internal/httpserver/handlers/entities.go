package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/deps"
)

type fileView struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url"`
}

type userView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Description string    `json:"description,omitempty"`
	Avatar      *fileView `json:"avatar,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type memberView struct {
	UserID    string `json:"user_id"`
	IsCreator bool   `json:"is_creator,omitempty"`
}

type channelView struct {
	ID      string       `json:"id"`
	UserID  string       `json:"user_id"`
	RefID   string       `json:"ref_id,omitempty"`
	RefType string       `json:"ref_type,omitempty"`
	Title   string       `json:"title,omitempty"`
	Members []memberView `json:"members"`
}

// User returns a user with its avatar file.
func User(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := d.Entities.User(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		v := userView{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Email:       u.Email,
			Description: u.Description,
			CreatedAt:   u.CreatedAt,
		}
		if u.Avatar != nil {
			v.Avatar = &fileView{ID: u.Avatar.ID, Name: u.Avatar.Name, ContentType: u.Avatar.ContentType, URL: u.Avatar.URL}
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// Channel returns a channel with its current members.
func Channel(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := d.Entities.Channel(r.Context(), chi.URLParam(r, "channelID"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		v := channelView{
			ID:      c.ID,
			UserID:  c.UserID,
			RefID:   c.RefID,
			RefType: c.RefType,
			Title:   c.Title,
			Members: make([]memberView, 0, len(c.Members)),
		}
		for _, m := range c.Members {
			v.Members = append(v.Members, memberView{UserID: m.UserID, IsCreator: m.IsCreator})
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// Service returns one linked service of a user.
func Service(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := domain.ServiceKey{
			OwnerID: chi.URLParam(r, "userID"),
			Name:    domain.NormalizeServiceName(chi.URLParam(r, "service")),
		}
		s, err := d.Entities.Service(r.Context(), key)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toServiceView(*s))
	}
}

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/deps"
)

type ownerView struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Description string `json:"description,omitempty"`
}

type serviceView struct {
	Name        string     `json:"name"`
	Provider    string     `json:"provider"`
	Identifier  string     `json:"identifier,omitempty"`
	Username    string     `json:"username,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	ProfileURL  string     `json:"profile_url,omitempty"`
	PictureURL  string     `json:"picture_url,omitempty"`
	Status      string     `json:"status"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

type servicesResponse struct {
	Owner    *ownerView    `json:"owner"`
	Services []serviceView `json:"services"`
}

func toServiceView(s domain.Service) serviceView {
	v := serviceView{
		Name:        s.Name,
		Provider:    s.Provider,
		Identifier:  s.Identifier,
		Username:    s.Username,
		DisplayName: s.DisplayName,
		ProfileURL:  s.ProfileURL,
		PictureURL:  s.PictureURL,
		Status:      string(s.Status),
	}
	if !s.RefreshedAt.IsZero() {
		t := s.RefreshedAt
		v.RefreshedAt = &t
	}
	return v
}

// Services lists the services linked to a user along with the user's profile fields.
func Services(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ownerID := chi.URLParam(r, "userID")
		if ownerID == "" {
			writeError(w, d.Logger, domain.ErrMissingOwner)
			return
		}

		services, err := d.Store.QueryServicesByOwner(ctx, ownerID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		profiles, err := d.Store.SelectUserFields(ctx, []string{ownerID})
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		resp := servicesResponse{Services: make([]serviceView, 0, len(services))}
		if len(profiles) > 0 {
			p := profiles[0]
			resp.Owner = &ownerView{ID: p.ID, Name: p.Name, Email: p.Email, Description: p.Description}
		}
		for _, s := range services {
			resp.Services = append(resp.Services, toServiceView(s))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

package provider

import (
	"context"
	"net/url"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
)

type instagramEnvelope struct {
	Data struct {
		ID             string `json:"id"`
		Username       string `json:"username"`
		FullName       string `json:"full_name"`
		ProfilePicture string `json:"profile_picture"`
		Counts         struct {
			FollowedBy int64 `json:"followed_by"`
		} `json:"counts"`
	} `json:"data"`
}

// Instagram maps the v1 users API.
type Instagram struct {
	client *Client
}

func NewInstagram(client *Client) *Instagram { return &Instagram{client: client} }

func (i *Instagram) Service() string { return domain.ServiceInstagram }
func (i *Instagram) Family() string  { return domain.ProviderInstagram }

func (i *Instagram) Profile(ctx context.Context, cred domain.Credential) (*domain.Fragment, error) {
	var env instagramEnvelope
	if err := i.client.GetJSON(ctx, "/users/self", nil, cred.AccessToken, &env); err != nil {
		return nil, err
	}
	u := env.Data
	return &domain.Fragment{
		Provider:    domain.ProviderInstagram,
		Identifier:  u.ID,
		Username:    u.Username,
		DisplayName: u.FullName,
		ProfileURL:  "https://www.instagram.com/" + url.PathEscape(u.Username),
		PictureURL:  u.ProfilePicture,
		Status:      domain.StatusActive,
	}, nil
}

func (i *Instagram) Metric(ctx context.Context, cred domain.Credential, identifier, metric string) (int64, error) {
	if metric != domain.MetricFollowers {
		return 0, unsupportedMetric(i, metric)
	}
	var env instagramEnvelope
	if err := i.client.GetJSON(ctx, "/users/"+url.PathEscape(identifier), nil, cred.AccessToken, &env); err != nil {
		return 0, err
	}
	return env.Data.Counts.FollowedBy, nil
}

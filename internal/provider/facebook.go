package provider

import (
	"context"
	"net/url"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
)

type facebookUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Link    string `json:"link"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
	FollowersCount int64 `json:"followers_count"`
}

// Facebook maps the Graph API.
type Facebook struct {
	client *Client
}

func NewFacebook(client *Client) *Facebook { return &Facebook{client: client} }

func (f *Facebook) Service() string { return domain.ServiceFacebook }
func (f *Facebook) Family() string  { return domain.ProviderFacebook }

func (f *Facebook) Profile(ctx context.Context, cred domain.Credential) (*domain.Fragment, error) {
	var u facebookUser
	q := url.Values{"fields": {"id,name,link,picture"}}
	if err := f.client.GetJSON(ctx, "/me", q, cred.AccessToken, &u); err != nil {
		return nil, err
	}
	return &domain.Fragment{
		Provider:    domain.ProviderFacebook,
		Identifier:  u.ID,
		DisplayName: u.Name,
		ProfileURL:  u.Link,
		PictureURL:  u.Picture.Data.URL,
		Status:      domain.StatusActive,
	}, nil
}

func (f *Facebook) Metric(ctx context.Context, cred domain.Credential, identifier, metric string) (int64, error) {
	if metric != domain.MetricFollowers {
		return 0, unsupportedMetric(f, metric)
	}
	var u facebookUser
	q := url.Values{"fields": {"followers_count"}}
	if err := f.client.GetJSON(ctx, "/"+url.PathEscape(identifier), q, cred.AccessToken, &u); err != nil {
		return 0, err
	}
	return u.FollowersCount, nil
}

package provider

import (
	"context"
	"net/url"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
)

type twitterUser struct {
	ID              string `json:"id_str"`
	ScreenName      string `json:"screen_name"`
	Name            string `json:"name"`
	URL             string `json:"url"`
	ProfileImageURL string `json:"profile_image_url_https"`
	FollowersCount  int64  `json:"followers_count"`
}

// Twitter maps the v1.1 users API.
type Twitter struct {
	client *Client
}

func NewTwitter(client *Client) *Twitter { return &Twitter{client: client} }

func (t *Twitter) Service() string { return domain.ServiceTwitter }
func (t *Twitter) Family() string  { return domain.ProviderTwitter }

func (t *Twitter) Profile(ctx context.Context, cred domain.Credential) (*domain.Fragment, error) {
	var u twitterUser
	if err := t.client.GetJSON(ctx, "/account/verify_credentials.json", nil, cred.AccessToken, &u); err != nil {
		return nil, err
	}
	return &domain.Fragment{
		Provider:    domain.ProviderTwitter,
		Identifier:  u.ID,
		Username:    u.ScreenName,
		DisplayName: u.Name,
		ProfileURL:  u.URL,
		PictureURL:  u.ProfileImageURL,
		Status:      domain.StatusActive,
	}, nil
}

func (t *Twitter) Metric(ctx context.Context, cred domain.Credential, identifier, metric string) (int64, error) {
	if metric != domain.MetricFollowers {
		return 0, unsupportedMetric(t, metric)
	}
	var u twitterUser
	q := url.Values{"user_id": {identifier}}
	if err := t.client.GetJSON(ctx, "/users/show.json", q, cred.AccessToken, &u); err != nil {
		return 0, err
	}
	return u.FollowersCount, nil
}

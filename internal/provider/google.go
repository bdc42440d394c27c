package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
)

// absent reports a 404 from a google-family service as a missing account.
// An empty item list is treated the same way by the callers.
func absent(err error) (*domain.Fragment, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return nil, err
}

type youtubeChannels struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title      string `json:"title"`
			CustomURL  string `json:"customUrl"`
			Thumbnails struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// YouTube maps the Data API v3 channels resource.
type YouTube struct {
	client *Client
}

func NewYouTube(client *Client) *YouTube { return &YouTube{client: client} }

func (y *YouTube) Service() string { return domain.ServiceYouTube }
func (y *YouTube) Family() string  { return domain.ProviderGoogle }

func (y *YouTube) Profile(ctx context.Context, cred domain.Credential) (*domain.Fragment, error) {
	var res youtubeChannels
	q := url.Values{"part": {"snippet"}, "mine": {"true"}}
	if err := y.client.GetJSON(ctx, "/youtube/v3/channels", q, cred.AccessToken, &res); err != nil {
		return absent(err)
	}
	if len(res.Items) == 0 {
		return nil, nil
	}

	ch := res.Items[0]
	profileURL := ch.Snippet.CustomURL
	if profileURL == "" {
		profileURL = "https://www.youtube.com/channel/" + ch.ID
	}
	return &domain.Fragment{
		Provider:    domain.ProviderGoogle,
		Identifier:  ch.ID,
		DisplayName: ch.Snippet.Title,
		ProfileURL:  profileURL,
		PictureURL:  ch.Snippet.Thumbnails.Default.URL,
		Status:      domain.StatusActive,
	}, nil
}

func (y *YouTube) Metric(ctx context.Context, cred domain.Credential, identifier, metric string) (int64, error) {
	if metric != domain.MetricFollowers {
		return 0, unsupportedMetric(y, metric)
	}
	var res youtubeChannels
	q := url.Values{"part": {"statistics"}, "id": {identifier}}
	if err := y.client.GetJSON(ctx, "/youtube/v3/channels", q, cred.AccessToken, &res); err != nil {
		return 0, err
	}
	if len(res.Items) == 0 {
		return 0, fmt.Errorf("youtube channel %s: %w", identifier, domain.ErrNotFound)
	}
	n, err := strconv.ParseInt(res.Items[0].Statistics.SubscriberCount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("youtube subscriber count %q: %w", res.Items[0].Statistics.SubscriberCount, domain.ErrProviderUnavailable)
	}
	return n, nil
}

type googlePerson struct {
	ID             string `json:"id"`
	Nickname       string `json:"nickname"`
	DisplayName    string `json:"displayName"`
	URL            string `json:"url"`
	CircledByCount int64  `json:"circledByCount"`
	Image          struct {
		URL string `json:"url"`
	} `json:"image"`
}

// GooglePlus maps the plus/v1 people resource.
type GooglePlus struct {
	client *Client
}

func NewGooglePlus(client *Client) *GooglePlus { return &GooglePlus{client: client} }

func (g *GooglePlus) Service() string { return domain.ServiceGooglePlus }
func (g *GooglePlus) Family() string  { return domain.ProviderGoogle }

func (g *GooglePlus) Profile(ctx context.Context, cred domain.Credential) (*domain.Fragment, error) {
	var p googlePerson
	if err := g.client.GetJSON(ctx, "/plus/v1/people/me", nil, cred.AccessToken, &p); err != nil {
		return absent(err)
	}
	return &domain.Fragment{
		Provider:    domain.ProviderGoogle,
		Identifier:  p.ID,
		Username:    p.Nickname,
		DisplayName: p.DisplayName,
		ProfileURL:  p.URL,
		PictureURL:  p.Image.URL,
		Status:      domain.StatusActive,
	}, nil
}

func (g *GooglePlus) Metric(ctx context.Context, cred domain.Credential, identifier, metric string) (int64, error) {
	if metric != domain.MetricFollowers {
		return 0, unsupportedMetric(g, metric)
	}
	var p googlePerson
	if err := g.client.GetJSON(ctx, "/plus/v1/people/"+url.PathEscape(identifier), nil, cred.AccessToken, &p); err != nil {
		return 0, err
	}
	return p.CircledByCount, nil
}

type analyticsAccounts struct {
	Items []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		SelfLink string `json:"selfLink"`
	} `json:"items"`
}

// GoogleAnalytics maps the management accounts resource. Accounts have no followers.
type GoogleAnalytics struct {
	client *Client
}

func NewGoogleAnalytics(client *Client) *GoogleAnalytics {
	return &GoogleAnalytics{client: client}
}

func (g *GoogleAnalytics) Service() string { return domain.ServiceGoogleAnalytics }
func (g *GoogleAnalytics) Family() string  { return domain.ProviderGoogle }

func (g *GoogleAnalytics) Profile(ctx context.Context, cred domain.Credential) (*domain.Fragment, error) {
	var res analyticsAccounts
	if err := g.client.GetJSON(ctx, "/analytics/v3/management/accounts", nil, cred.AccessToken, &res); err != nil {
		return absent(err)
	}
	if len(res.Items) == 0 {
		return nil, nil
	}
	acc := res.Items[0]
	return &domain.Fragment{
		Provider:    domain.ProviderGoogle,
		Identifier:  acc.ID,
		DisplayName: acc.Name,
		ProfileURL:  acc.SelfLink,
		Status:      domain.StatusActive,
	}, nil
}

func (g *GoogleAnalytics) Metric(_ context.Context, _ domain.Credential, _, metric string) (int64, error) {
	return 0, unsupportedMetric(g, metric)
}

package aggregate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkmetrics/internal/cache"
	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/provider"
	sqlstore "github.com/MrSnakeDoc/linkmetrics/internal/store/sqlite"
)

var today = time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)

type fixture struct {
	store      *sqlstore.Store
	aggregator *Aggregator
	hits       map[string]*atomic.Int32
}

// newFixture wires a real store, an in-memory cache tier and one fake provider per
// family. routes is keyed by family, then by path; a "500" body answers with an error.
func newFixture(t *testing.T, routes map[string]map[string]string) *fixture {
	t.Helper()

	store, err := sqlstore.Open("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := provider.DefaultConfig()
	cfg.Client = provider.ClientConfig{Timeout: 2 * time.Second}
	f := &fixture{store: store, hits: map[string]*atomic.Int32{}}

	for _, family := range []string{domain.ProviderTwitter, domain.ProviderFacebook, domain.ProviderGoogle, domain.ProviderInstagram} {
		paths := routes[family]
		counter := &atomic.Int32{}
		f.hits[family] = counter
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			counter.Add(1)
			body, ok := paths[r.URL.Path]
			switch {
			case !ok:
				http.NotFound(w, r)
			case body == "500":
				http.Error(w, "boom", http.StatusInternalServerError)
			default:
				_, _ = w.Write([]byte(body))
			}
		}))
		t.Cleanup(srv.Close)
		cfg.Families[family] = provider.FamilyConfig{BaseURL: srv.URL, Concurrency: 2}
	}

	clock := func() time.Time { return today }
	c := cache.NewResolver(cache.NewMemoryTier(128, time.Hour), cache.Options{})
	d := provider.NewDispatcher(provider.NewDefaultRegistry(cfg), store, provider.DispatcherOptions{
		Limiter: provider.LimiterFromConfig(cfg),
		Clock:   clock,
	})
	f.aggregator = New(c, store, d, Options{Clock: clock})
	return f
}

func (f *fixture) link(t *testing.T, owner, service, family string) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.LinkService(ctx, &domain.Service{OwnerID: owner, Name: service, Provider: family}); err != nil {
		t.Fatalf("LinkService() error = %v", err)
	}
	if err := f.store.PutCredential(ctx, &domain.Credential{OwnerID: owner, Provider: family, AccessToken: "tok"}); err != nil {
		t.Fatalf("PutCredential() error = %v", err)
	}
}

func TestFetchUserMetricsEndToEnd(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		domain.ProviderGoogle: {
			"/youtube/v3/channels": `{"items":[{"id":"UC1","snippet":{"title":"Chan"},"statistics":{"subscriberCount":"4500"}}]}`,
		},
	})
	ctx := context.Background()
	f.link(t, "U1", "twitter", domain.ProviderTwitter)
	f.link(t, "U1", "youtube", domain.ProviderGoogle)

	twitterKey := domain.ServiceKey{OwnerID: "U1", Name: "twitter"}
	if _, err := f.store.ConditionalRefresh(ctx, twitterKey, domain.Fragment{
		Provider: domain.ProviderTwitter, Identifier: "42", Status: domain.StatusActive,
	}, domain.StartOfDay(today)); err != nil {
		t.Fatalf("ConditionalRefresh() error = %v", err)
	}
	if err := f.store.PutMetric(ctx, &domain.Metric{
		OwnerID: "U1", Service: "twitter", Name: domain.MetricFollowers, Value: 120, FetchedAt: domain.StartOfDay(today),
	}); err != nil {
		t.Fatalf("PutMetric() error = %v", err)
	}

	got, err := f.aggregator.FetchUserMetrics(ctx, "U1", domain.MetricFollowers)
	if err != nil {
		t.Fatalf("FetchUserMetrics() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(got), got)
	}
	if want := (MetricResult{Value: 120, Source: SourceStore}); got["twitter"] != want {
		t.Errorf("twitter = %+v, want %+v", got["twitter"], want)
	}
	if want := (MetricResult{Value: 4500, Source: SourceProvider}); got["youtube"] != want {
		t.Errorf("youtube = %+v, want %+v", got["youtube"], want)
	}
	if n := f.hits[domain.ProviderTwitter].Load(); n != 0 {
		t.Errorf("twitter provider hits = %d, want 0", n)
	}

	persisted, err := f.store.GetMetric(ctx, domain.ServiceKey{OwnerID: "U1", Name: "youtube"}, domain.MetricFollowers)
	if err != nil {
		t.Fatalf("GetMetric(youtube) error = %v", err)
	}
	if persisted.Value != 4500 {
		t.Errorf("persisted youtube followers = %d, want 4500", persisted.Value)
	}
	refreshed, err := f.store.GetService(ctx, domain.ServiceKey{OwnerID: "U1", Name: "youtube"})
	if err != nil {
		t.Fatalf("GetService(youtube) error = %v", err)
	}
	if refreshed.Identifier != "UC1" || !refreshed.RefreshedAt.Equal(domain.StartOfDay(today)) {
		t.Errorf("youtube record = %+v, want identifier UC1 refreshed today", refreshed)
	}

	googleHits := f.hits[domain.ProviderGoogle].Load()
	again, err := f.aggregator.FetchUserMetrics(ctx, "U1", domain.MetricFollowers)
	if err != nil {
		t.Fatalf("second FetchUserMetrics() error = %v", err)
	}
	for name, res := range again {
		if res.Source != SourceCache {
			t.Errorf("%s source = %q, want cache", name, res.Source)
		}
	}
	if n := f.hits[domain.ProviderGoogle].Load(); n != googleHits {
		t.Errorf("google provider hits went from %d to %d, want no new calls", googleHits, n)
	}
}

func TestFetchUserMetricsIsolatesFailures(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		domain.ProviderTwitter: {
			"/account/verify_credentials.json": `{"id_str":"42"}`,
			"/users/show.json":                 `{"id_str":"42","followers_count":10}`,
		},
		domain.ProviderFacebook: {
			"/me": "500",
		},
		domain.ProviderInstagram: {
			"/users/self": `{"data":{"id":"i1"}}`,
			"/users/i1":   `{"data":{"id":"i1","counts":{"followed_by":30}}}`,
		},
	})
	f.link(t, "U1", "twitter", domain.ProviderTwitter)
	f.link(t, "U1", "facebook", domain.ProviderFacebook)
	f.link(t, "U1", "instagram", domain.ProviderInstagram)

	got, err := f.aggregator.FetchUserMetrics(context.Background(), "U1", domain.MetricFollowers)
	if err != nil {
		t.Fatalf("FetchUserMetrics() error = %v", err)
	}

	if got["twitter"].Value != 10 || got["twitter"].Failed() {
		t.Errorf("twitter = %+v, want 10", got["twitter"])
	}
	if got["instagram"].Value != 30 || got["instagram"].Failed() {
		t.Errorf("instagram = %+v, want 30", got["instagram"])
	}
	fb, ok := got["facebook"]
	if !ok {
		t.Fatal("facebook missing from results, want error marker")
	}
	if !fb.Failed() || fb.Source != "" {
		t.Errorf("facebook = %+v, want error marker", fb)
	}
}

func TestFetchUserMetricsFailuresAreRetried(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		domain.ProviderFacebook: {"/me": "500"},
	})
	f.link(t, "U1", "facebook", domain.ProviderFacebook)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := f.aggregator.FetchUserMetrics(ctx, "U1", domain.MetricFollowers)
		if err != nil {
			t.Fatalf("FetchUserMetrics() error = %v", err)
		}
		if !got["facebook"].Failed() {
			t.Fatalf("facebook = %+v, want error marker", got["facebook"])
		}
	}
	if n := f.hits[domain.ProviderFacebook].Load(); n != 2 {
		t.Errorf("facebook provider hits = %d, want 2", n)
	}
}

func TestFetchUserMetricsAbsentService(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		domain.ProviderGoogle: {"/youtube/v3/channels": `{"items":[]}`},
	})
	f.link(t, "U1", "youtube", domain.ProviderGoogle)

	got, err := f.aggregator.FetchUserMetrics(context.Background(), "U1", domain.MetricFollowers)
	if err != nil {
		t.Fatalf("FetchUserMetrics() error = %v", err)
	}
	if want := (MetricResult{Source: SourceAbsent}); got["youtube"] != want {
		t.Errorf("youtube = %+v, want %+v", got["youtube"], want)
	}
}

func TestFetchUserMetricsSkipsUnlinkedService(t *testing.T) {
	f := newFixture(t, map[string]map[string]string{
		domain.ProviderTwitter: {
			"/account/verify_credentials.json": `{"id_str":"42"}`,
			"/users/show.json":                 `{"id_str":"42","followers_count":10}`,
		},
	})
	ctx := context.Background()
	f.link(t, "U1", "twitter", domain.ProviderTwitter)
	key := domain.ServiceKey{OwnerID: "U1", Name: "twitter"}
	if err := f.store.SetServiceStatus(ctx, key, domain.StatusUnlinked); err != nil {
		t.Fatalf("SetServiceStatus() error = %v", err)
	}

	got, err := f.aggregator.FetchUserMetrics(ctx, "U1", domain.MetricFollowers)
	if err != nil {
		t.Fatalf("FetchUserMetrics() error = %v", err)
	}
	if want := (MetricResult{Source: SourceAbsent}); got["twitter"] != want {
		t.Errorf("twitter = %+v, want %+v", got["twitter"], want)
	}
	if n := f.hits[domain.ProviderTwitter].Load(); n != 0 {
		t.Errorf("twitter provider hits = %d, want 0", n)
	}

	stored, err := f.store.GetService(ctx, key)
	if err != nil {
		t.Fatalf("GetService() error = %v", err)
	}
	if stored.Status != domain.StatusUnlinked {
		t.Errorf("status = %q, want unlinked", stored.Status)
	}
}

func TestFetchUserMetricsJoinedFlightReportsLoadSource(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, map[string]map[string]string{
		domain.ProviderInstagram: {
			"/users/self": `{"data":{"id":"i1"}}`,
			"/users/i1":   `{"data":{"id":"i1","counts":{"followed_by":7}}}`,
		},
	})
	f.link(t, "U1", "instagram", domain.ProviderInstagram)
	blocking := &blockingStore{Store: f.store, release: release, entered: make(chan struct{})}
	f.aggregator.store = blocking

	ctx := context.Background()
	type outcome struct {
		res map[string]MetricResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := f.aggregator.FetchUserMetrics(ctx, "U1", domain.MetricFollowers)
		first <- outcome{res, err}
	}()
	<-blocking.entered

	second := make(chan outcome, 1)
	go func() {
		res, err := f.aggregator.FetchUserMetrics(ctx, "U1", domain.MetricFollowers)
		second <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	for name, ch := range map[string]chan outcome{"first": first, "second": second} {
		o := <-ch
		if o.err != nil {
			t.Fatalf("%s FetchUserMetrics() error = %v", name, o.err)
		}
		if want := (MetricResult{Value: 7, Source: SourceProvider}); o.res["instagram"] != want {
			t.Errorf("%s instagram = %+v, want %+v", name, o.res["instagram"], want)
		}
	}
	if n := f.hits[domain.ProviderInstagram].Load(); n != 2 {
		t.Errorf("instagram provider hits = %d, want 2", n)
	}
}

func TestFetchUserMetricsMissingCredential(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.store.LinkService(context.Background(), &domain.Service{OwnerID: "U1", Name: "twitter", Provider: domain.ProviderTwitter}); err != nil {
		t.Fatalf("LinkService() error = %v", err)
	}

	got, err := f.aggregator.FetchUserMetrics(context.Background(), "U1", domain.MetricFollowers)
	if err != nil {
		t.Fatalf("FetchUserMetrics() error = %v", err)
	}
	if !got["twitter"].Failed() {
		t.Errorf("twitter = %+v, want error marker", got["twitter"])
	}
	if n := f.hits[domain.ProviderTwitter].Load(); n != 0 {
		t.Errorf("twitter provider hits = %d, want 0", n)
	}
}

func TestFetchUserMetricsRequiresOwner(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.aggregator.FetchUserMetrics(context.Background(), "", domain.MetricFollowers); !errors.Is(err, domain.ErrMissingOwner) {
		t.Fatalf("FetchUserMetrics() error = %v, want ErrMissingOwner", err)
	}
}

type unavailableStore struct{ Store }

func (unavailableStore) QueryServicesByOwner(context.Context, string) ([]domain.Service, error) {
	return nil, domain.ErrStoreUnavailable
}

func TestFetchUserMetricsListingFailure(t *testing.T) {
	c := cache.NewResolver(cache.NewMemoryTier(8, time.Hour), cache.Options{})
	a := New(c, unavailableStore{}, nil, Options{})

	if _, err := a.FetchUserMetrics(context.Background(), "U1", domain.MetricFollowers); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("FetchUserMetrics() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestFetchUserMetricsCancelledCallerLeavesBranchesRunning(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, map[string]map[string]string{
		domain.ProviderInstagram: {
			"/users/self": `{"data":{"id":"i1"}}`,
			"/users/i1":   `{"data":{"id":"i1","counts":{"followed_by":7}}}`,
		},
	})
	f.link(t, "U1", "instagram", domain.ProviderInstagram)

	// Hold the branch inside the store tier until the caller has given up.
	blocking := &blockingStore{Store: f.store, release: release, entered: make(chan struct{})}
	f.aggregator.store = blocking

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := f.aggregator.FetchUserMetrics(ctx, "U1", domain.MetricFollowers)
		errCh <- err
	}()

	<-blocking.entered
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("FetchUserMetrics() error = %v, want context.Canceled", err)
	}
	close(release)

	deadline := time.Now().Add(5 * time.Second)
	for {
		m, err := f.store.GetMetric(context.Background(), domain.ServiceKey{OwnerID: "U1", Name: "instagram"}, domain.MetricFollowers)
		if err == nil && m.Value == 7 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("metric not persisted after cancellation: %v, %v", m, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// blockingStore parks the first GetMetric call until release is closed.
type blockingStore struct {
	*sqlstore.Store
	release chan struct{}
	entered chan struct{}
	once    atomic.Bool
}

func (b *blockingStore) GetMetric(ctx context.Context, key domain.ServiceKey, name string) (*domain.Metric, error) {
	if b.once.CompareAndSwap(false, true) {
		close(b.entered)
		<-b.release
	}
	return b.Store.GetMetric(ctx, key, name)
}

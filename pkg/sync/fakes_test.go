package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/graph"
	"github.com/shintairiku/instagram-analysis/pkg/models"
)

type fakeGraph struct {
	details          *graph.AccountData
	detailsErr       error
	detailsErrByUser map[string]error
	tokenErr         error
	accountInsights  map[string]int64
	accInsightsErr   error
	accInsightCalls  int
	media            []graph.Media
	mediaErr         error
	insights         map[string]map[string]int64
	insightsErr      map[string]error
	sinceCalls       []time.Time
	insightCalls     []string
}

func (f *fakeGraph) ValidateAccessToken(ctx context.Context, accessToken string) (*graph.TokenInfo, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return &graph.TokenInfo{ID: "me", Username: "me"}, nil
}

func (f *fakeGraph) AccountDetailsWithFallback(ctx context.Context, userID, accessToken string) (*graph.AccountData, error) {
	if err := f.detailsErrByUser[userID]; err != nil {
		return nil, err
	}
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	return f.details, nil
}

func (f *fakeGraph) GetInsightsMetrics(ctx context.Context, userID, accessToken string, metrics []string, period string) (map[string]int64, error) {
	f.accInsightCalls++
	if f.accInsightsErr != nil {
		return nil, f.accInsightsErr
	}
	if f.accountInsights != nil {
		return f.accountInsights, nil
	}
	return map[string]int64{}, nil
}

func (f *fakeGraph) GetPostsSince(ctx context.Context, userID, accessToken string, since time.Time, maxPosts int) ([]graph.Media, error) {
	f.sinceCalls = append(f.sinceCalls, since)
	if f.mediaErr != nil {
		return nil, f.mediaErr
	}
	out := make([]graph.Media, 0, len(f.media))
	for _, m := range f.media {
		if at := m.PostedAt(); at != nil && at.Before(since) {
			continue
		}
		out = append(out, m)
		if maxPosts > 0 && len(out) >= maxPosts {
			break
		}
	}
	return out, nil
}

func (f *fakeGraph) FetchAllPosts(ctx context.Context, userID, accessToken string, maxPosts int) ([]graph.Media, error) {
	if f.mediaErr != nil {
		return nil, f.mediaErr
	}
	if maxPosts > 0 && len(f.media) > maxPosts {
		return f.media[:maxPosts], nil
	}
	return f.media, nil
}

func (f *fakeGraph) GetPostInsights(ctx context.Context, mediaID, accessToken, mediaType string) (map[string]int64, error) {
	f.insightCalls = append(f.insightCalls, mediaID)
	if err := f.insightsErr[mediaID]; err != nil {
		return nil, err
	}
	if m, ok := f.insights[mediaID]; ok {
		return m, nil
	}
	return map[string]int64{}, nil
}

type fakeAccounts struct {
	mu       gosync.Mutex
	accounts map[string]*models.Account
	active   []models.Account
	synced   map[string]time.Time
	profiles map[string]string
}

func newFakeAccounts(accounts ...models.Account) *fakeAccounts {
	f := &fakeAccounts{
		accounts: map[string]*models.Account{},
		synced:   map[string]time.Time{},
		profiles: map[string]string{},
	}
	for i := range accounts {
		a := accounts[i]
		f.accounts[a.ID] = &a
		if a.IsActive {
			f.active = append(f.active, a)
		}
	}
	return f
}

func (f *fakeAccounts) GetActiveAccounts(ctx context.Context) ([]models.Account, error) {
	return f.active, nil
}

func (f *fakeAccounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return nil, errs.Newf(errs.ErrorTypeNotFound, 404, "account %s not found", id)
}

func (f *fakeAccounts) UpdateProfile(ctx context.Context, id, username, accountName, profilePictureURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[id] = username
	return nil
}

func (f *fakeAccounts) TouchLastSynced(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced[id] = at
	return nil
}

type fakePosts struct {
	mu       gosync.Mutex
	nextID   int
	byIGID   map[string]*models.Post
	listed   []models.Post
	upsertFn func(post models.Post) error
}

func newFakePosts() *fakePosts {
	return &fakePosts{byIGID: map[string]*models.Post{}}
}

func (f *fakePosts) Upsert(ctx context.Context, post models.Post) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertFn != nil {
		if err := f.upsertFn(post); err != nil {
			return nil, err
		}
	}
	if existing, ok := f.byIGID[post.InstagramPostID]; ok {
		post.ID = existing.ID
	} else {
		f.nextID++
		post.ID = fmt.Sprintf("post-%d", f.nextID)
	}
	f.byIGID[post.InstagramPostID] = &post
	return &post, nil
}

func (f *fakePosts) GetByInstagramPostID(ctx context.Context, instagramPostID string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if post, ok := f.byIGID[instagramPostID]; ok {
		return post, nil
	}
	return nil, nil
}

func (f *fakePosts) ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]models.Post, error) {
	return f.listed, nil
}

type fakeMetrics struct {
	mu       gosync.Mutex
	saved    []models.PostMetric
	existing map[string]bool
	saveErr  error
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{existing: map[string]bool{}}
}

func (f *fakeMetrics) CreateOrUpdateDaily(ctx context.Context, metric models.PostMetric) (*models.PostMetric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved = append(f.saved, metric)
	return &metric, nil
}

func (f *fakeMetrics) PostIDsWithMetrics(ctx context.Context, postIDs []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range postIDs {
		if f.existing[id] {
			out[id] = true
		}
	}
	return out, nil
}

type fakeDailyStats struct {
	mu    gosync.Mutex
	saved []models.DailyStat
}

func (f *fakeDailyStats) Upsert(ctx context.Context, stat models.DailyStat) (*models.DailyStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, stat)
	return &stat, nil
}

func mustDate(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func testAccount(id string) models.Account {
	return models.Account{
		ID:              id,
		InstagramUserID: "1784" + id,
		Username:        "user_" + id,
		AccessToken:     "token-" + id,
		IsActive:        true,
	}
}

func mediaOn(id, timestamp string) graph.Media {
	return graph.Media{
		ID:        id,
		MediaType: "IMAGE",
		Caption:   "caption for " + id,
		Permalink: "https://www.instagram.com/p/" + id + "/",
		Timestamp: timestamp,
	}
}

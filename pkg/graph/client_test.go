package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shintairiku/instagram-analysis/pkg/config"
	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
	"github.com/shintairiku/instagram-analysis/pkg/logger"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&config.GraphConfig{
		BaseURL:    serverURL,
		APIVersion: "v21.0",
		Timeout:    5 * time.Second,
		PagePause:  0,
	}, nil, logger.NewTestLogger())
}

func TestGetBasicAccountData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/17840001", r.URL.Path)
		assert.Equal(t, AccountFieldsFull, r.URL.Query().Get("fields"))
		assert.Equal(t, "tok-1", r.URL.Query().Get("access_token"))
		fmt.Fprint(w, `{"id":"17840001","username":"cafe_tokyo","name":"Cafe Tokyo","followers_count":1200,"follows_count":80,"media_count":342}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	account, err := client.GetBasicAccountData(context.Background(), "17840001", "tok-1", AccountFieldsFull)
	require.NoError(t, err)

	assert.Equal(t, "cafe_tokyo", account.Username)
	assert.Equal(t, int64(1200), account.FollowersCount)
	assert.Equal(t, int64(342), account.MediaCount)
}

func TestGetBasicAccountDataAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetBasicAccountData(context.Background(), "17840001", "bad", AccountFieldsFull)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
}

func TestGetBasicAccountDataRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Application request limit reached","type":"OAuthException","code":4}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetBasicAccountData(context.Background(), "17840001", "tok", AccountFieldsFull)
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeRateLimit, apiErr.Type)
	assert.Equal(t, 2*time.Minute, apiErr.RetryAfter)
}

func TestGetInsightsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/17840001/insights", r.URL.Path)
		assert.Equal(t, "reach,follower_count", r.URL.Query().Get("metric"))
		assert.Equal(t, "day", r.URL.Query().Get("period"))
		fmt.Fprint(w, `{"data":[
			{"name":"reach","period":"day","values":[{"value":5400}]},
			{"name":"follower_count","period":"day","values":[{"value":12}]}
		]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	metrics, err := client.GetInsightsMetrics(context.Background(), "17840001", "tok", []string{"reach", "follower_count"}, "day")
	require.NoError(t, err)

	assert.Equal(t, int64(5400), metrics["reach"])
	assert.Equal(t, int64(12), metrics["follower_count"])
}

func TestGetPostInsightsNormalizesReelsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metric := r.URL.Query().Get("metric")
		assert.Contains(t, metric, "ig_reels_video_view_total_time")
		fmt.Fprint(w, `{"data":[
			{"name":"likes","values":[{"value":150}]},
			{"name":"reach","values":[{"value":3000}]},
			{"name":"ig_reels_video_view_total_time","values":[{"value":98000}]},
			{"name":"ig_reels_avg_watch_time","values":[{"value":6500}]}
		]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	metrics, err := client.GetPostInsights(context.Background(), "17900001", "tok", "VIDEO")
	require.NoError(t, err)

	assert.Equal(t, int64(98000), metrics["video_view_total_time"])
	assert.Equal(t, int64(6500), metrics["avg_watch_time"])
	assert.NotContains(t, metrics, "ig_reels_video_view_total_time")
	assert.Equal(t, int64(150), metrics["likes"])
}

func TestGetPostInsightsFallsBackToBaseMetrics(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"Unsupported metric","type":"GraphMethodException","code":100}}`)
			return
		}
		assert.Equal(t, "likes,comments,saved,shares,views,reach,total_interactions", r.URL.Query().Get("metric"))
		fmt.Fprint(w, `{"data":[{"name":"likes","values":[{"value":10}]}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	metrics, err := client.GetPostInsights(context.Background(), "17900001", "tok", "CAROUSEL_ALBUM")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(10), metrics["likes"])
}

func mediaPage(serverURL string, withNext bool, items ...string) string {
	page := `{"data":[`
	for i, item := range items {
		if i > 0 {
			page += ","
		}
		page += item
	}
	page += `]`
	if withNext {
		page += fmt.Sprintf(`,"paging":{"next":"%s/v21.0/17840001/media?after=cursor2&access_token=tok"}`, serverURL)
	}
	page += `}`
	return page
}

func TestFetchAllPostsFollowsPagination(t *testing.T) {
	var serverURL string
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, mediaPage(serverURL, true,
				`{"id":"p1","media_type":"IMAGE","timestamp":"2025-03-10T09:00:00+0000"}`,
				`{"id":"p2","media_type":"VIDEO","timestamp":"2025-03-09T09:00:00+0000"}`))
			return
		}
		assert.Equal(t, "cursor2", r.URL.Query().Get("after"))
		fmt.Fprint(w, mediaPage(serverURL, false,
			`{"id":"p3","media_type":"IMAGE","timestamp":"2025-03-08T09:00:00+0000"}`))
	}))
	defer server.Close()
	serverURL = server.URL

	client := newTestClient(server.URL)
	posts, err := client.FetchAllPosts(context.Background(), "17840001", "tok", 0)
	require.NoError(t, err)

	require.Len(t, posts, 3)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, "p3", posts[2].ID)
	assert.Equal(t, 2, calls)
}

func TestFetchAllPostsHonorsCap(t *testing.T) {
	var serverURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, mediaPage(serverURL, true,
			`{"id":"p1","media_type":"IMAGE"}`,
			`{"id":"p2","media_type":"IMAGE"}`))
	}))
	defer server.Close()
	serverURL = server.URL

	client := newTestClient(server.URL)
	posts, err := client.FetchAllPosts(context.Background(), "17840001", "tok", 2)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestGetPostsSinceStopsEarly(t *testing.T) {
	var serverURL string
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// descending order: the second item is already older than the cutoff
		fmt.Fprint(w, mediaPage(serverURL, true,
			`{"id":"p1","media_type":"IMAGE","timestamp":"2025-03-10T09:00:00+0000"}`,
			`{"id":"p2","media_type":"IMAGE","timestamp":"2025-02-01T09:00:00+0000"}`))
	}))
	defer server.Close()
	serverURL = server.URL

	client := newTestClient(server.URL)
	since := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	posts, err := client.GetPostsSince(context.Background(), "17840001", "tok", since, 0)
	require.NoError(t, err)

	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, 1, calls, "pagination must stop at the first post older than the cutoff")
}

func TestValidateAccessToken(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v21.0/me", r.URL.Path)
			fmt.Fprint(w, `{"id":"17840001","username":"cafe_tokyo"}`)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		info, err := client.ValidateAccessToken(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "cafe_tokyo", info.Username)
	})

	t.Run("expired", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"Error validating access token: Session has expired","type":"OAuthException","code":190}}`)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ValidateAccessToken(context.Background(), "tok")
		assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
	})
}

func TestAccountDetailsWithFallback(t *testing.T) {
	t.Run("full fields succeed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id":"17840001","username":"cafe_tokyo","followers_count":1200}`)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		account, err := client.AccountDetailsWithFallback(context.Background(), "17840001", "tok")
		require.NoError(t, err)
		assert.Equal(t, "cafe_tokyo", account.Username)
	})

	t.Run("walks the ladder", func(t *testing.T) {
		var fieldSets []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := r.URL.Query().Get("fields")
			fieldSets = append(fieldSets, fields)
			if fields != AccountFieldsMinimal {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"message":"Unsupported field","type":"GraphMethodException","code":100}}`)
				return
			}
			fmt.Fprint(w, `{"id":"17840001","username":"cafe_tokyo"}`)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		account, err := client.AccountDetailsWithFallback(context.Background(), "17840001", "tok")
		require.NoError(t, err)

		assert.Equal(t, []string{AccountFieldsFull, AccountFieldsBasic, AccountFieldsMinimal}, fieldSets)
		assert.Equal(t, "cafe_tokyo", account.Username)
	})

	t.Run("synthesizes username when every set fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"Unsupported get request","type":"GraphMethodException","code":100}}`)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		account, err := client.AccountDetailsWithFallback(context.Background(), "17841405309211844", "tok")
		require.NoError(t, err)
		assert.Equal(t, "user_09211844", account.Username)
	})

	t.Run("auth errors do not fall through the ladder", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.AccountDetailsWithFallback(context.Background(), "17840001", "tok")
		assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
		assert.Equal(t, 1, calls)
	})
}

func TestGetJSONContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		fmt.Fprint(w, `{"id":"17840001"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.GetBasicAccountData(ctx, "17840001", "tok", AccountFieldsMinimal)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchradar/launchradar/internal/domain"
)

const searchPage = `{
	"data": [
		{
			"id": "100",
			"author_id": "u1",
			"text": "Acme TGE is live, claim portal open",
			"created_at": "2026-08-28T10:00:00Z",
			"public_metrics": {"like_count": 250, "retweet_count": 40},
			"referenced_tweets": [{"type": "quoted"}]
		},
		{
			"id": "101",
			"author_id": "u2",
			"text": "replying about the launch",
			"created_at": "2026-08-28T10:05:00Z",
			"public_metrics": {"like_count": 3, "retweet_count": 0},
			"referenced_tweets": [{"type": "replied_to"}]
		}
	],
	"includes": {
		"users": [
			{"id": "u1", "username": "acmeproto", "verified": true, "public_metrics": {"followers_count": 52000}},
			{"id": "u2", "username": "randomfan", "verified": false, "public_metrics": {"followers_count": 120}}
		]
	}
}`

func TestSearchRecent_MapsPostsAndQuota(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tweets/search/recent", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("query")
		w.Header().Set("x-rate-limit-remaining", "42")
		w.Header().Set("x-rate-limit-reset", "1790000000")
		w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	api := NewHTTPAPI(srv.URL, "token-abc", 50, srv.Client())
	resp, err := api.SearchRecent(context.Background(), `"Acme" TGE`, 20)
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-abc", gotAuth)
	assert.Equal(t, `"Acme" TGE`, gotQuery)

	require.NotNil(t, resp.Quota)
	assert.Equal(t, 42, resp.Quota.Remaining)
	assert.False(t, resp.Quota.ResetAt.IsZero())

	require.Len(t, resp.Posts, 2)
	first := resp.Posts[0]
	assert.Equal(t, "100", first.ID)
	assert.Equal(t, "acmeproto", first.Author)
	assert.True(t, first.Verified)
	assert.Equal(t, 52000, first.Followers)
	assert.Equal(t, 250, first.Likes)
	assert.True(t, first.IsQuote)
	assert.False(t, first.IsReply)
	assert.Equal(t, "https://x.com/acmeproto/status/100", first.URL)

	second := resp.Posts[1]
	assert.True(t, second.IsReply)
	assert.False(t, second.Verified)
}

func TestGet_TooManyRequestsIsQuotaExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-remaining", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	api := NewHTTPAPI(srv.URL, "token-abc", 50, srv.Client())
	resp, err := api.SearchRecent(context.Background(), "TGE", 20)
	require.ErrorIs(t, err, domain.ErrRateLimitExhausted)
	require.NotNil(t, resp.Quota)
	assert.Equal(t, 0, resp.Quota.Remaining)
}

func TestResolveHandles_NormalizesAtPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/by", r.URL.Path)
		assert.Equal(t, "acmeproto,randomfan", r.URL.Query().Get("usernames"))
		w.Write([]byte(`{"data": [{"id": "u1", "username": "acmeproto"}, {"id": "u2", "username": "randomfan"}]}`))
	}))
	defer srv.Close()

	api := NewHTTPAPI(srv.URL, "token-abc", 50, srv.Client())
	ids, _, err := api.ResolveHandles(context.Background(), []string{"@acmeproto", "@randomfan"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"@acmeproto": "u1", "@randomfan": "u2"}, ids)
}

func TestParseQuota_AbsentHeadersYieldNil(t *testing.T) {
	assert.Nil(t, parseQuota(http.Header{}))
}

func TestUserAndListTimelinePaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	api := NewHTTPAPI(srv.URL, "token-abc", 50, srv.Client())
	_, err := api.UserTimeline(context.Background(), "u1", 10)
	require.NoError(t, err)
	_, err = api.ListTimeline(context.Background(), "l9", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"/users/u1/tweets", "/lists/l9/tweets"}, paths)
}

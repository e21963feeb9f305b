package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/launchradar/launchradar/internal/domain"
)

// Response bodies larger than this are truncated before decoding
const maxResponseBytes = 4 << 20

// HTTPAPI is the bearer-token platform client. It parses the rate-limit
// headers the platform reports on every response so the monitor's quota
// tracking stays current.
type HTTPAPI struct {
	baseURL  string
	token    string
	pageSize int
	client   *http.Client
}

// NewHTTPAPI wires a platform client. A nil http client gets a default with
// a 15 second timeout.
func NewHTTPAPI(baseURL, token string, pageSize int, client *http.Client) *HTTPAPI {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return &HTTPAPI{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		pageSize: pageSize,
		client:   client,
	}
}

type apiUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Verified      bool   `json:"verified"`
	PublicMetrics struct {
		Followers int `json:"followers_count"`
	} `json:"public_metrics"`
}

type apiPost struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"author_id"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
	PublicMetrics struct {
		Likes   int `json:"like_count"`
		Reposts int `json:"retweet_count"`
	} `json:"public_metrics"`
	Referenced []struct {
		Type string `json:"type"`
	} `json:"referenced_tweets"`
}

type apiPage struct {
	Data     []apiPost `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
}

// SearchRecent runs a recent-search query.
func (a *HTTPAPI) SearchRecent(ctx context.Context, query string, limit int) (*Response, error) {
	params := a.postParams(limit)
	params.Set("query", query)
	return a.postPage(ctx, "/tweets/search/recent", params)
}

// UserTimeline fetches a user's recent posts.
func (a *HTTPAPI) UserTimeline(ctx context.Context, userID string, limit int) (*Response, error) {
	return a.postPage(ctx, "/users/"+url.PathEscape(userID)+"/tweets", a.postParams(limit))
}

// ListTimeline fetches the recent posts of a curated list.
func (a *HTTPAPI) ListTimeline(ctx context.Context, listID string, limit int) (*Response, error) {
	return a.postPage(ctx, "/lists/"+url.PathEscape(listID)+"/tweets", a.postParams(limit))
}

// ResolveHandles maps handles to user ids in one lookup call.
func (a *HTTPAPI) ResolveHandles(ctx context.Context, handles []string) (map[string]string, *Quota, error) {
	trimmed := make([]string, 0, len(handles))
	for _, h := range handles {
		trimmed = append(trimmed, strings.TrimPrefix(h, "@"))
	}
	params := url.Values{}
	params.Set("usernames", strings.Join(trimmed, ","))

	body, quota, err := a.get(ctx, "/users/by", params)
	if err != nil {
		return nil, quota, err
	}
	var page struct {
		Data []apiUser `json:"data"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, quota, fmt.Errorf("decode user lookup: %w", err)
	}
	ids := make(map[string]string, len(page.Data))
	for _, u := range page.Data {
		ids["@"+u.Username] = u.ID
	}
	return ids, quota, nil
}

func (a *HTTPAPI) postParams(limit int) url.Values {
	if limit <= 0 || limit > a.pageSize {
		limit = a.pageSize
	}
	params := url.Values{}
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("tweet.fields", "created_at,public_metrics,referenced_tweets,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username,verified,public_metrics")
	return params
}

func (a *HTTPAPI) postPage(ctx context.Context, path string, params url.Values) (*Response, error) {
	body, quota, err := a.get(ctx, path, params)
	if err != nil {
		return &Response{Quota: quota}, err
	}
	var page apiPage
	if err := json.Unmarshal(body, &page); err != nil {
		return &Response{Quota: quota}, fmt.Errorf("decode %s: %w", path, err)
	}

	users := make(map[string]apiUser, len(page.Includes.Users))
	for _, u := range page.Includes.Users {
		users[u.ID] = u
	}

	posts := make([]Post, 0, len(page.Data))
	for _, p := range page.Data {
		author := users[p.AuthorID]
		post := Post{
			ID:        p.ID,
			Author:    author.Username,
			AuthorID:  p.AuthorID,
			Text:      p.Text,
			CreatedAt: p.CreatedAt,
			Verified:  author.Verified,
			Followers: author.PublicMetrics.Followers,
			Likes:     p.PublicMetrics.Likes,
			Reposts:   p.PublicMetrics.Reposts,
		}
		if author.Username != "" {
			post.URL = fmt.Sprintf("https://x.com/%s/status/%s", author.Username, p.ID)
		}
		for _, ref := range p.Referenced {
			switch ref.Type {
			case "replied_to":
				post.IsReply = true
			case "quoted":
				post.IsQuote = true
			}
		}
		posts = append(posts, post)
	}
	return &Response{Posts: posts, Quota: quota}, nil
}

func (a *HTTPAPI) get(ctx context.Context, path string, params url.Values) ([]byte, *Quota, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("User-Agent", "launchradar/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	quota := parseQuota(resp.Header)
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, quota, fmt.Errorf("request %s: %w", path, domain.ErrRateLimitExhausted)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, quota, fmt.Errorf("request %s: status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, quota, fmt.Errorf("read %s: %w", path, err)
	}
	return body, quota, nil
}

// parseQuota reads the platform rate-limit headers; absent headers yield nil
// so the monitor keeps its last observation.
func parseQuota(h http.Header) *Quota {
	remainingHdr := h.Get("x-rate-limit-remaining")
	if remainingHdr == "" {
		return nil
	}
	remaining, err := strconv.Atoi(remainingHdr)
	if err != nil {
		return nil
	}
	q := &Quota{Remaining: remaining}
	if resetHdr := h.Get("x-rate-limit-reset"); resetHdr != "" {
		if unix, err := strconv.ParseInt(resetHdr, 10, 64); err == nil {
			q.ResetAt = time.Unix(unix, 0)
		}
	}
	return q
}

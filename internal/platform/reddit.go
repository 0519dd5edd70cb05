package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-listener/internal/config"
	"github.com/fpang/brand-listener/internal/mention"
)

const (
	redditAuthBaseURL = "https://www.reddit.com"
	redditAPIBaseURL  = "https://oauth.reddit.com"

	redditTimeout        = 30 * time.Second
	redditSearchLimit    = 10
	redditCommentLimit   = 20
	redditTokenSafetyGap = 1 * time.Minute
)

// Reddit native ID prefixes. They distinguish posts from comments so
// PostReply can rebuild the right fullname.
const (
	redditPostPrefix    = "post_"
	redditCommentPrefix = "comment_"
)

// RedditAdapter monitors Reddit via the OAuth API using the script-app
// password grant.
type RedditAdapter struct {
	httpClient *http.Client
	cfg        config.RedditConfig
	keywords   []string

	authBaseURL string
	apiBaseURL  string

	token       string
	tokenExpiry time.Time
}

var _ Adapter = (*RedditAdapter)(nil)

// NewReddit creates a Reddit adapter from script-app credentials.
func NewReddit(cfg config.RedditConfig, keywords []string) *RedditAdapter {
	return &RedditAdapter{
		httpClient:  &http.Client{Timeout: redditTimeout},
		cfg:         cfg,
		keywords:    keywords,
		authBaseURL: redditAuthBaseURL,
		apiBaseURL:  redditAPIBaseURL,
	}
}

func (r *RedditAdapter) Name() string { return "reddit" }
func (r *RedditAdapter) MonitorKeywords() []string { return r.keywords }

func (r *RedditAdapter) IsOwnPost(m mention.Mention) bool {
	return strings.EqualFold(m.Author, r.cfg.Username)
}

// --- API response types ---

type redditTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error,omitempty"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditThing `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Title     string `json:"title"`
	SelfText  string `json:"selftext"`
	Body      string `json:"body"` // comments only
	Permalink string `json:"permalink"`
}

type redditCommentResponse struct {
	JSON struct {
		Errors [][]interface{} `json:"errors"`
	} `json:"json"`
}

// --- Adapter operations ---

// Authenticate performs the password grant and caches the bearer token.
func (r *RedditAdapter) Authenticate(ctx context.Context) bool {
	if err := r.refreshToken(ctx); err != nil {
		log.Error().Err(err).Msg("Reddit authentication failed")
		return false
	}
	log.Info().Str("username", r.cfg.Username).Msg("Reddit authenticated")
	return true
}

func (r *RedditAdapter) refreshToken(ctx context.Context) error {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {r.cfg.Username},
		"password":   {r.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.authBaseURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(r.cfg.ClientID, r.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	var tok redditTokenResponse
	if err := r.doJSON(req, &tok); err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	if tok.Error != "" || tok.AccessToken == "" {
		return fmt.Errorf("token request rejected: %q", tok.Error)
	}

	r.token = tok.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - redditTokenSafetyGap)
	return nil
}

func (r *RedditAdapter) ensureToken(ctx context.Context) error {
	if r.token != "" && time.Now().Before(r.tokenExpiry) {
		return nil
	}
	return r.refreshToken(ctx)
}

// SearchMentions searches posts per keyword and scans the newest comments
// sitewide, filtering those locally. Keyword failures are logged and skipped
// so one bad query never empties the whole cycle.
func (r *RedditAdapter) SearchMentions(ctx context.Context, keywords []string) ([]mention.Mention, error) {
	if err := r.ensureToken(ctx); err != nil {
		return nil, err
	}

	var mentions []mention.Mention
	for _, kw := range keywords {
		found, err := r.searchPosts(ctx, kw)
		if err != nil {
			log.Warn().Err(err).Str("keyword", kw).Msg("Reddit post search failed, skipping keyword")
			continue
		}
		mentions = append(mentions, found...)
	}

	comments, err := r.scanComments(ctx, keywords)
	if err != nil {
		log.Warn().Err(err).Msg("Reddit comment scan failed")
	} else {
		mentions = append(mentions, comments...)
	}

	return mentions, nil
}

func (r *RedditAdapter) searchPosts(ctx context.Context, keyword string) ([]mention.Mention, error) {
	q := url.Values{
		"q":     {keyword},
		"sort":  {"new"},
		"t":     {"day"},
		"limit": {fmt.Sprint(redditSearchLimit)},
	}
	var listing redditListing
	if err := r.getJSON(ctx, "/search?"+q.Encode(), &listing); err != nil {
		return nil, err
	}

	var mentions []mention.Mention
	for _, child := range listing.Data.Children {
		post := child.Data
		content := post.Title
		if post.SelfText != "" {
			content += "\n" + post.SelfText
		}
		mentions = append(mentions, mention.Mention{
			NativeID: redditPostPrefix + post.ID,
			Author:   post.Author,
			Content:  content,
			URL:      "https://reddit.com" + post.Permalink,
		})
	}
	return mentions, nil
}

// scanComments pulls the newest sitewide comments and keeps the ones that
// mention a keyword. Reddit's search endpoint does not cover comments, so
// this best-effort sample is how comment mentions get picked up at all.
func (r *RedditAdapter) scanComments(ctx context.Context, keywords []string) ([]mention.Mention, error) {
	q := url.Values{"limit": {fmt.Sprint(redditCommentLimit)}}
	var listing redditListing
	if err := r.getJSON(ctx, "/r/all/comments?"+q.Encode(), &listing); err != nil {
		return nil, err
	}

	var mentions []mention.Mention
	for _, child := range listing.Data.Children {
		comment := child.Data
		if !containsAnyKeyword(comment.Body, keywords) {
			continue
		}
		mentions = append(mentions, mention.Mention{
			NativeID: redditCommentPrefix + comment.ID,
			Author:   comment.Author,
			Content:  comment.Body,
			URL:      "https://reddit.com" + comment.Permalink,
		})
	}
	return mentions, nil
}

// PostReply comments on the post or comment behind nativeID.
func (r *RedditAdapter) PostReply(ctx context.Context, nativeID, text string) error {
	if err := r.ensureToken(ctx); err != nil {
		return err
	}

	var fullname string
	switch {
	case strings.HasPrefix(nativeID, redditPostPrefix):
		fullname = "t3_" + strings.TrimPrefix(nativeID, redditPostPrefix)
	case strings.HasPrefix(nativeID, redditCommentPrefix):
		fullname = "t1_" + strings.TrimPrefix(nativeID, redditCommentPrefix)
	default:
		return fmt.Errorf("unrecognized reddit id %q", nativeID)
	}

	form := url.Values{
		"api_type": {"json"},
		"thing_id": {fullname},
		"text":     {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.apiBaseURL+"/api/comment", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	r.setAPIHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp redditCommentResponse
	if err := r.doJSON(req, &resp); err != nil {
		return fmt.Errorf("post reply to %s: %w", fullname, err)
	}
	if len(resp.JSON.Errors) > 0 {
		return fmt.Errorf("post reply to %s rejected: %v", fullname, resp.JSON.Errors[0])
	}

	log.Info().Str("thing", fullname).Msg("Posted Reddit reply")
	return nil
}

// --- HTTP helpers ---

func (r *RedditAdapter) setAPIHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("User-Agent", r.cfg.UserAgent)
}

func (r *RedditAdapter) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiBaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	r.setAPIHeaders(req)
	return r.doJSON(req, out)
}

func (r *RedditAdapter) doJSON(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := r.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Reddit API response")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().Int("statusCode", resp.StatusCode).Dur("duration", duration).
		Str("path", req.URL.Path).Msg("Reddit API response")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateBody(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w (body: %s)", err, truncateBody(body))
	}
	return nil
}

func containsAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func truncateBody(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

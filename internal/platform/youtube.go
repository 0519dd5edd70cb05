package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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
	youtubeAPIBaseURL = "https://www.googleapis.com/youtube/v3"

	youtubeTimeout      = 30 * time.Second
	youtubeVideoResults = 5
	youtubeCommentLimit = 20
)

// ErrNoOAuthToken is returned by PostReply when the adapter runs with an API
// key only. The monitor records the mention as failed, so the same comment is
// never retried.
var ErrNoOAuthToken = errors.New("youtube: replying requires an OAuth token")

// YouTubeAdapter monitors YouTube comments via the Data API v3. Searching
// needs only an API key; posting replies needs an OAuth token.
type YouTubeAdapter struct {
	httpClient *http.Client
	cfg        config.YouTubeConfig
	keywords   []string

	baseURL string
}

var _ Adapter = (*YouTubeAdapter)(nil)

// NewYouTube creates a YouTube adapter.
func NewYouTube(cfg config.YouTubeConfig, keywords []string) *YouTubeAdapter {
	return &YouTubeAdapter{
		httpClient: &http.Client{Timeout: youtubeTimeout},
		cfg:        cfg,
		keywords:   keywords,
		baseURL:    youtubeAPIBaseURL,
	}
}

func (y *YouTubeAdapter) Name() string { return "youtube" }
func (y *YouTubeAdapter) MonitorKeywords() []string { return y.keywords }

func (y *YouTubeAdapter) IsOwnPost(m mention.Mention) bool {
	return y.cfg.ChannelName != "" && strings.EqualFold(m.Author, y.cfg.ChannelName)
}

// --- API response types ---

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type youtubeCommentThreadsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					TextOriginal      string `json:"textOriginal"`
					AuthorDisplayName string `json:"authorDisplayName"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

type youtubeErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Adapter operations ---

// Authenticate checks that an API key is configured. Without an OAuth token
// the adapter still searches; replies fail and consume their mention IDs.
func (y *YouTubeAdapter) Authenticate(ctx context.Context) bool {
	if y.cfg.APIKey == "" {
		log.Error().Msg("YouTube API key not configured")
		return false
	}
	if y.cfg.OAuthToken == "" {
		log.Warn().Msg("YouTube OAuth token not configured, running search-only")
	}
	return true
}

// SearchMentions finds recent videos per keyword and collects their top-level
// comments that mention a keyword.
func (y *YouTubeAdapter) SearchMentions(ctx context.Context, keywords []string) ([]mention.Mention, error) {
	var mentions []mention.Mention
	seen := make(map[string]bool)

	for _, kw := range keywords {
		videoIDs, err := y.searchVideos(ctx, kw)
		if err != nil {
			log.Warn().Err(err).Str("keyword", kw).Msg("YouTube video search failed, skipping keyword")
			continue
		}
		for _, videoID := range videoIDs {
			comments, err := y.videoComments(ctx, videoID, keywords)
			if err != nil {
				// Comments disabled on a video is routine, not a cycle failure.
				log.Debug().Err(err).Str("video", videoID).Msg("Skipping video comments")
				continue
			}
			for _, c := range comments {
				if !seen[c.NativeID] {
					seen[c.NativeID] = true
					mentions = append(mentions, c)
				}
			}
		}
	}
	return mentions, nil
}

func (y *YouTubeAdapter) searchVideos(ctx context.Context, keyword string) ([]string, error) {
	q := url.Values{
		"part":       {"snippet"},
		"q":          {keyword},
		"type":       {"video"},
		"order":      {"date"},
		"maxResults": {fmt.Sprint(youtubeVideoResults)},
		"key":        {y.cfg.APIKey},
	}
	var resp youtubeSearchResponse
	if err := y.getJSON(ctx, "/search?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	return ids, nil
}

func (y *YouTubeAdapter) videoComments(ctx context.Context, videoID string, keywords []string) ([]mention.Mention, error) {
	q := url.Values{
		"part":       {"snippet"},
		"videoId":    {videoID},
		"maxResults": {fmt.Sprint(youtubeCommentLimit)},
		"key":        {y.cfg.APIKey},
	}
	var resp youtubeCommentThreadsResponse
	if err := y.getJSON(ctx, "/commentThreads?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	var mentions []mention.Mention
	for _, item := range resp.Items {
		snippet := item.Snippet.TopLevelComment.Snippet
		if !containsAnyKeyword(snippet.TextOriginal, keywords) {
			continue
		}
		mentions = append(mentions, mention.Mention{
			NativeID: item.ID,
			Author:   snippet.AuthorDisplayName,
			Content:  snippet.TextOriginal,
			URL:      "https://www.youtube.com/watch?v=" + videoID,
			ParentID: videoID,
		})
	}
	return mentions, nil
}

// PostReply replies to the comment thread behind nativeID. Requires OAuth.
func (y *YouTubeAdapter) PostReply(ctx context.Context, nativeID, text string) error {
	if y.cfg.OAuthToken == "" {
		return ErrNoOAuthToken
	}

	payload := map[string]interface{}{
		"snippet": map[string]string{
			"parentId":     nativeID,
			"textOriginal": text,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		y.baseURL+"/comments?part=snippet", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+y.cfg.OAuthToken)
	req.Header.Set("Content-Type", "application/json")

	var posted map[string]interface{}
	if err := y.doJSON(req, &posted); err != nil {
		return fmt.Errorf("post reply to %s: %w", nativeID, err)
	}

	log.Info().Str("comment", nativeID).Msg("Posted YouTube reply")
	return nil
}

// --- HTTP helpers ---

func (y *YouTubeAdapter) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return y.doJSON(req, out)
}

func (y *YouTubeAdapter) doJSON(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := y.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("YouTube API response")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().Int("statusCode", resp.StatusCode).Dur("duration", duration).
		Str("path", req.URL.Path).Msg("YouTube API response")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr youtubeErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateBody(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w (body: %s)", err, truncateBody(body))
	}
	return nil
}

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-listener/internal/config"
	"github.com/fpang/brand-listener/internal/mention"
)

const (
	mastodonTimeout     = 30 * time.Second
	mastodonSearchLimit = 10
)

var (
	htmlBreakPattern = regexp.MustCompile(`(?i)<br\s*/?>|</p>`)
	htmlTagPattern   = regexp.MustCompile(`<[^>]*>`)
)

// MastodonAdapter monitors a single Mastodon instance with an access token.
type MastodonAdapter struct {
	httpClient *http.Client
	cfg        config.MastodonConfig
	keywords   []string

	baseURL string
	ownAcct string // set by Authenticate
}

var _ Adapter = (*MastodonAdapter)(nil)

// NewMastodon creates a Mastodon adapter for the configured instance.
func NewMastodon(cfg config.MastodonConfig, keywords []string) *MastodonAdapter {
	return &MastodonAdapter{
		httpClient: &http.Client{Timeout: mastodonTimeout},
		cfg:        cfg,
		keywords:   keywords,
		baseURL:    strings.TrimRight(cfg.InstanceURL, "/"),
	}
}

func (m *MastodonAdapter) Name() string { return "mastodon" }
func (m *MastodonAdapter) MonitorKeywords() []string { return m.keywords }

func (m *MastodonAdapter) IsOwnPost(mn mention.Mention) bool {
	return m.ownAcct != "" && strings.EqualFold(mn.Author, m.ownAcct)
}

// --- API response types ---

type mastodonAccount struct {
	ID   string `json:"id"`
	Acct string `json:"acct"`
}

type mastodonStatus struct {
	ID         string          `json:"id"`
	Content    string          `json:"content"` // HTML
	URL        string          `json:"url"`
	Visibility string          `json:"visibility"`
	Account    mastodonAccount `json:"account"`
	Reblog     *mastodonStatus `json:"reblog"`
}

type mastodonSearchResponse struct {
	Statuses []mastodonStatus `json:"statuses"`
}

type mastodonNotification struct {
	Type   string          `json:"type"`
	Status *mastodonStatus `json:"status"`
}

// --- Adapter operations ---

// Authenticate verifies the token and remembers the account it posts as.
func (m *MastodonAdapter) Authenticate(ctx context.Context) bool {
	var account mastodonAccount
	if err := m.getJSON(ctx, "/api/v1/accounts/verify_credentials", &account); err != nil {
		log.Error().Err(err).Str("instance", m.baseURL).Msg("Mastodon authentication failed")
		return false
	}
	m.ownAcct = account.Acct
	log.Info().Str("acct", account.Acct).Str("instance", m.baseURL).Msg("Mastodon authenticated")
	return true
}

// SearchMentions combines full-text status search per keyword with direct
// @-mention notifications that match a keyword.
func (m *MastodonAdapter) SearchMentions(ctx context.Context, keywords []string) ([]mention.Mention, error) {
	var mentions []mention.Mention
	seen := make(map[string]bool)

	for _, kw := range keywords {
		q := url.Values{
			"q":       {kw},
			"type":    {"statuses"},
			"resolve": {"true"},
			"limit":   {fmt.Sprint(mastodonSearchLimit)},
		}
		var resp mastodonSearchResponse
		if err := m.getJSON(ctx, "/api/v2/search?"+q.Encode(), &resp); err != nil {
			log.Warn().Err(err).Str("keyword", kw).Msg("Mastodon search failed, skipping keyword")
			continue
		}
		for _, status := range resp.Statuses {
			if status.Reblog != nil || seen[status.ID] {
				continue
			}
			seen[status.ID] = true
			mentions = append(mentions, statusToMention(status))
		}
	}

	notified, err := m.mentionNotifications(ctx, keywords)
	if err != nil {
		log.Warn().Err(err).Msg("Mastodon notification scan failed")
	}
	for _, mn := range notified {
		if !seen[mn.NativeID] {
			seen[mn.NativeID] = true
			mentions = append(mentions, mn)
		}
	}

	return mentions, nil
}

func (m *MastodonAdapter) mentionNotifications(ctx context.Context, keywords []string) ([]mention.Mention, error) {
	var notifications []mastodonNotification
	if err := m.getJSON(ctx, "/api/v1/notifications?types[]=mention", &notifications); err != nil {
		return nil, err
	}

	var mentions []mention.Mention
	for _, n := range notifications {
		if n.Type != "mention" || n.Status == nil {
			continue
		}
		text := StripHTML(n.Status.Content)
		if !containsAnyKeyword(text, keywords) {
			continue
		}
		mentions = append(mentions, statusToMention(*n.Status))
	}
	return mentions, nil
}

// PostReply replies to the status, keeping its visibility and making sure the
// author is @-mentioned so the reply threads correctly.
func (m *MastodonAdapter) PostReply(ctx context.Context, nativeID, text string) error {
	var status mastodonStatus
	if err := m.getJSON(ctx, "/api/v1/statuses/"+nativeID, &status); err != nil {
		return fmt.Errorf("fetch status %s: %w", nativeID, err)
	}

	reply := text
	handle := "@" + status.Account.Acct
	if !strings.Contains(reply, handle) {
		reply = handle + " " + reply
	}
	visibility := status.Visibility
	if visibility == "" {
		visibility = "public"
	}

	form := url.Values{
		"status":         {reply},
		"in_reply_to_id": {nativeID},
		"visibility":     {visibility},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/api/v1/statuses", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var posted mastodonStatus
	if err := m.doJSON(req, &posted); err != nil {
		return fmt.Errorf("post reply to %s: %w", nativeID, err)
	}

	log.Info().Str("status", nativeID).Str("visibility", visibility).Msg("Posted Mastodon reply")
	return nil
}

// --- HTTP helpers ---

func (m *MastodonAdapter) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.AccessToken)
	return m.doJSON(req, out)
}

func (m *MastodonAdapter) doJSON(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := m.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Mastodon API response")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().Int("statusCode", resp.StatusCode).Dur("duration", duration).
		Str("path", req.URL.Path).Msg("Mastodon API response")

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

func statusToMention(status mastodonStatus) mention.Mention {
	return mention.Mention{
		NativeID: status.ID,
		Author:   status.Account.Acct,
		Content:  StripHTML(status.Content),
		URL:      status.URL,
	}
}

// StripHTML flattens Mastodon's HTML status content into plain text.
// Paragraph and line breaks become newlines so multi-paragraph toots keep
// their shape for classification.
func StripHTML(s string) string {
	s = htmlBreakPattern.ReplaceAllString(s, "\n")
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}

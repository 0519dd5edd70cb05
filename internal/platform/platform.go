// Package platform holds the per-network adapters. Each adapter wraps one
// social platform's HTTP API behind the same small surface: authenticate,
// search for brand mentions, and post a reply.
package platform

import (
	"context"

	"github.com/fpang/brand-listener/internal/mention"
)

// Adapter is one monitored platform. Implementations own their HTTP clients
// and credentials; the monitor loop only sees mentions and reply errors.
type Adapter interface {
	// Name is the stable lowercase platform identifier used in mention IDs
	// and ledger records.
	Name() string

	// Authenticate verifies credentials, refreshing tokens where the
	// platform requires it. Returns false when the adapter cannot post.
	Authenticate(ctx context.Context) bool

	// SearchMentions returns recent public mentions matching the keywords.
	// Partial results with an error are allowed; the monitor processes what
	// it gets.
	SearchMentions(ctx context.Context, keywords []string) ([]mention.Mention, error)

	// PostReply publishes text as a reply to the platform-native item ID.
	PostReply(ctx context.Context, nativeID, text string) error

	// MonitorKeywords is the keyword set this adapter searches for.
	MonitorKeywords() []string

	// IsOwnPost reports whether the mention was authored by the account the
	// adapter posts as, so the listener never replies to itself.
	IsOwnPost(m mention.Mention) bool
}

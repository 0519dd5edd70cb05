// Package mention defines the normalized unit of incoming content shared by
// the platform adapters and the processing loop.
package mention

// Mention is one platform post/comment/status that may reference a monitored
// keyword. Adapters return plain text in Content (HTML and markup already
// stripped) and a NativeID that is stable across polls for the same post.
type Mention struct {
	// NativeID is the platform's own identifier, without the platform prefix.
	// Adapters that expose several content kinds namespace it themselves
	// (e.g. Reddit uses "post_<id>" and "comment_<id>").
	NativeID string

	Author  string
	Content string

	// URL is a link to the original post, when the platform provides one.
	URL string

	// ParentID is the parent post/comment ID for replies, when known.
	ParentID string
}

// QualifiedID returns the globally unique, deterministic mention identifier
// "<platform>_<native_id>". The processing ledger is keyed on this value, so
// re-fetching the same post on a later poll always maps to the same record.
func QualifiedID(platform, nativeID string) string {
	return platform + "_" + nativeID
}

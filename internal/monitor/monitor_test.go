package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fpang/brand-listener/internal/engine"
	"github.com/fpang/brand-listener/internal/mention"
	"github.com/fpang/brand-listener/internal/platform"
	"github.com/fpang/brand-listener/internal/store"
)

type fakeAdapter struct {
	name      string
	authOK    bool
	mentions  []mention.Mention
	searchErr error
	replyErr  error
	ownAuthor string

	replies []string // native IDs replied to
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Authenticate(ctx context.Context) bool { return f.authOK }
func (f *fakeAdapter) MonitorKeywords() []string { return []string{"acme"} }

func (f *fakeAdapter) SearchMentions(ctx context.Context, keywords []string) ([]mention.Mention, error) {
	return f.mentions, f.searchErr
}

func (f *fakeAdapter) PostReply(ctx context.Context, nativeID, text string) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, nativeID)
	return nil
}

func (f *fakeAdapter) IsOwnPost(m mention.Mention) bool {
	return f.ownAuthor != "" && m.Author == f.ownAuthor
}

type fakeEngine struct {
	decision engine.Decision
	calls    int
}

func (f *fakeEngine) GenerateResponse(ctx context.Context, content string) engine.Decision {
	f.calls++
	return f.decision
}

type memLedger struct {
	records map[string]store.ProcessedMention
	readErr error
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[string]store.ProcessedMention)}
}

func (l *memLedger) IsProcessed(ctx context.Context, id string) (bool, error) {
	if l.readErr != nil {
		return false, l.readErr
	}
	_, ok := l.records[id]
	return ok, nil
}

func (l *memLedger) MarkProcessed(ctx context.Context, rec store.ProcessedMention) error {
	if _, ok := l.records[rec.MentionID]; ok {
		return store.ErrDuplicateMention
	}
	l.records[rec.MentionID] = rec
	return nil
}

func (l *memLedger) Stats(ctx context.Context) (store.Stats, error) {
	return store.Stats{Total: len(l.records)}, nil
}

func testMention(id string) mention.Mention {
	return mention.Mention{NativeID: id, Author: "someone", Content: "what is acme pricing?"}
}

func testDecision() engine.Decision {
	return engine.Decision{
		Response:     "See our pricing page for all the details!",
		ResponseType: engine.ResponseTypeCanned,
		Intent:       "pricing and costs",
		Sentiment:    "NEUTRAL",
		Confidence:   0.9,
	}
}

// --- Processor Tests ---

func TestRunCycle_RepliesAndRecords(t *testing.T) {
	adapter := &fakeAdapter{name: "reddit", authOK: true, mentions: []mention.Mention{testMention("post_1")}}
	eng := &fakeEngine{decision: testDecision()}
	ledger := newMemLedger()

	p := New(ledger, eng, nil, false)
	summary := p.RunCycle(context.Background(), "cycle-1", []platform.Adapter{adapter})

	if summary.Replied != 1 || summary.Canned != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(adapter.replies) != 1 || adapter.replies[0] != "post_1" {
		t.Errorf("unexpected replies: %v", adapter.replies)
	}
	rec, ok := ledger.records["reddit_post_1"]
	if !ok {
		t.Fatal("mention not recorded in ledger")
	}
	if rec.ResponseType != engine.ResponseTypeCanned {
		t.Errorf("unexpected record type %q", rec.ResponseType)
	}
}

func TestRunCycle_AlreadyProcessedSkipsEngine(t *testing.T) {
	adapter := &fakeAdapter{name: "reddit", authOK: true, mentions: []mention.Mention{testMention("post_1")}}
	eng := &fakeEngine{decision: testDecision()}
	ledger := newMemLedger()
	ledger.records["reddit_post_1"] = store.ProcessedMention{MentionID: "reddit_post_1"}

	p := New(ledger, eng, nil, false)
	summary := p.RunCycle(context.Background(), "cycle-1", []platform.Adapter{adapter})

	if eng.calls != 0 {
		t.Errorf("engine must not run for processed mentions, got %d calls", eng.calls)
	}
	if summary.Skipped != 1 || summary.Replied != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestRunCycle_FailedReplyConsumesID(t *testing.T) {
	adapter := &fakeAdapter{
		name:     "youtube",
		authOK:   true,
		mentions: []mention.Mention{testMention("thread_9")},
		replyErr: errors.New("comments disabled"),
	}
	ledger := newMemLedger()

	p := New(ledger, &fakeEngine{decision: testDecision()}, nil, false)
	summary := p.RunCycle(context.Background(), "cycle-1", []platform.Adapter{adapter})

	if summary.Failed != 1 || summary.Replied != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	rec, ok := ledger.records["youtube_thread_9"]
	if !ok {
		t.Fatal("failed mention must still be recorded")
	}
	if rec.ResponseType != engine.ResponseTypeFailed {
		t.Errorf("expected failed record, got %q", rec.ResponseType)
	}
	if !strings.HasPrefix(rec.Response, "FAILED: ") {
		t.Errorf("expected FAILED prefix, got %q", rec.Response)
	}
}

func TestRunCycle_SkipsOwnPosts(t *testing.T) {
	own := testMention("post_2")
	own.Author = "acme_bot"
	adapter := &fakeAdapter{
		name:      "reddit",
		authOK:    true,
		ownAuthor: "acme_bot",
		mentions:  []mention.Mention{own},
	}
	eng := &fakeEngine{decision: testDecision()}
	ledger := newMemLedger()

	p := New(ledger, eng, nil, false)
	summary := p.RunCycle(context.Background(), "cycle-1", []platform.Adapter{adapter})

	if eng.calls != 0 {
		t.Errorf("engine must not run for own posts, got %d calls", eng.calls)
	}
	if summary.Skipped != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(ledger.records) != 0 {
		t.Error("own posts must not be recorded")
	}
}

func TestRunCycle_AdapterFailureIsolated(t *testing.T) {
	broken := &fakeAdapter{name: "mastodon", authOK: true, searchErr: errors.New("instance down")}
	healthy := &fakeAdapter{name: "reddit", authOK: true, mentions: []mention.Mention{testMention("post_3")}}
	ledger := newMemLedger()

	p := New(ledger, &fakeEngine{decision: testDecision()}, nil, false)
	summary := p.RunCycle(context.Background(), "cycle-1", []platform.Adapter{broken, healthy})

	if summary.Replied != 1 {
		t.Errorf("healthy adapter must still process, got %+v", summary)
	}
	if summary.Platforms != 2 {
		t.Errorf("expected both platforms visited, got %d", summary.Platforms)
	}
}

func TestRunCycle_AuthFailureSkipsPlatform(t *testing.T) {
	adapter := &fakeAdapter{name: "reddit", authOK: false, mentions: []mention.Mention{testMention("post_4")}}
	eng := &fakeEngine{decision: testDecision()}

	p := New(newMemLedger(), eng, nil, false)
	summary := p.RunCycle(context.Background(), "cycle-1", []platform.Adapter{adapter})

	if eng.calls != 0 || summary.Found != 0 {
		t.Errorf("unauthenticated platform must be skipped, got %+v", summary)
	}
}

func TestRunCycle_DryRunPostsNothing(t *testing.T) {
	adapter := &fakeAdapter{name: "reddit", authOK: true, mentions: []mention.Mention{testMention("post_5")}}
	eng := &fakeEngine{decision: testDecision()}
	ledger := newMemLedger()

	p := New(ledger, eng, nil, true)
	summary := p.RunCycle(context.Background(), "cycle-1", []platform.Adapter{adapter})

	if eng.calls != 1 {
		t.Errorf("dry run still decides, got %d engine calls", eng.calls)
	}
	if len(adapter.replies) != 0 {
		t.Errorf("dry run must not post, got %v", adapter.replies)
	}
	if len(ledger.records) != 0 {
		t.Error("dry run must not write the ledger")
	}
	if summary.Replied != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestRunCycle_LedgerReadFailureSkipsMention(t *testing.T) {
	adapter := &fakeAdapter{name: "reddit", authOK: true, mentions: []mention.Mention{testMention("post_6")}}
	eng := &fakeEngine{decision: testDecision()}
	ledger := newMemLedger()
	ledger.readErr = errors.New("table unavailable")

	p := New(ledger, eng, nil, false)
	summary := p.RunCycle(context.Background(), "cycle-1", []platform.Adapter{adapter})

	if eng.calls != 0 {
		t.Error("engine must not run when dedup cannot be checked")
	}
	if summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(adapter.replies) != 0 {
		t.Error("must not reply when dedup cannot be checked")
	}
}

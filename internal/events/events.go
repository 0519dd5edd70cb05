// Package events publishes cycle summaries to EventBridge so downstream
// automation (alerting, reporting) can react without polling the ledger.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-listener/internal/monitor"
)

const (
	eventSource     = "brand-listener"
	cycleDetailType = "PollCycleCompleted"
)

// CycleCompleted is the EventBridge detail payload for one finished cycle.
type CycleCompleted struct {
	CycleID     string    `json:"cycleId"`
	Platforms   int       `json:"platforms"`
	Found       int       `json:"mentionsFound"`
	Replied     int       `json:"repliesPosted"`
	Canned      int       `json:"cannedReplies"`
	AI          int       `json:"aiReplies"`
	Skipped     int       `json:"mentionsSkipped"`
	Failed      int       `json:"mentionsFailed"`
	CompletedAt time.Time `json:"completedAt"`
}

// EmitCycleSummary publishes a PollCycleCompleted event.
func EmitCycleSummary(ctx context.Context, client *eventbridge.Client, summary monitor.Summary) error {
	event := CycleCompleted{
		CycleID:     summary.CycleID,
		Platforms:   summary.Platforms,
		Found:       summary.Found,
		Replied:     summary.Replied,
		Canned:      summary.Canned,
		AI:          summary.AI,
		Skipped:     summary.Skipped,
		Failed:      summary.Failed,
		CompletedAt: time.Now().UTC(),
	}
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal CycleCompleted: %w", err)
	}

	input := &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{
			{
				Source:     aws.String(eventSource),
				DetailType: aws.String(cycleDetailType),
				Detail:     aws.String(string(detail)),
			},
		},
	}

	result, err := client.PutEvents(ctx, input)
	if err != nil {
		log.Error().Err(err).Str("cycle", summary.CycleID).Msg("EventBridge PutEvents failed")
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(entry.ErrorCode)).
					Str("errorMessage", aws.ToString(entry.ErrorMessage)).
					Str("cycle", summary.CycleID).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i,
					aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}

	log.Debug().Str("cycle", summary.CycleID).Msg("Cycle summary emitted to EventBridge")
	return nil
}

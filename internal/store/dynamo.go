package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design. Processed-mention
// records and canned-response entries share one table, distinguished by
// partition key prefix.
const (
	mentionPKPrefix = "MENTION#"
	cannedPKPrefix  = "CANNED#"
	skRecord        = "RECORD"
	skMeta          = "META"
)

// DynamoStore implements Ledger, Catalog, and CatalogWriter on AWS DynamoDB.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// Compile-time interface checks.
var (
	_ Ledger        = (*DynamoStore)(nil)
	_ Catalog       = (*DynamoStore)(nil)
	_ CatalogWriter = (*DynamoStore)(nil)
)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func mentionPK(mentionID string) string {
	return mentionPKPrefix + mentionID
}

// --- Ledger ---

func (s *DynamoStore) IsProcessed(ctx context.Context, mentionID string) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: mentionPK(mentionID)},
			"SK": &types.AttributeValueMemberS{Value: skRecord},
		},
	})
	if err != nil {
		return false, fmt.Errorf("GetItem mention=%s: %w", mentionID, err)
	}
	return result.Item != nil, nil
}

// MarkProcessed appends the audit record for a mention. The conditional put
// rejects duplicate IDs at the storage layer; insert-or-ignore would not be
// enough to keep the exactly-once invariant honest.
func (s *DynamoStore) MarkProcessed(ctx context.Context, rec ProcessedMention) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record mention=%s: %w", rec.MentionID, err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: mentionPK(rec.MentionID)}
	item["SK"] = &types.AttributeValueMemberS{Value: skRecord}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: %s", ErrDuplicateMention, rec.MentionID)
		}
		return fmt.Errorf("PutItem mention=%s: %w", rec.MentionID, err)
	}
	return nil
}

// Stats scans all mention records and aggregates client-side. The table stays
// small enough (one item per handled mention) that a paginated scan is fine
// for a reporting read.
func (s *DynamoStore) Stats(ctx context.Context) (Stats, error) {
	input := &dynamodb.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: aws.String("begins_with(PK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: mentionPKPrefix},
		},
	}

	var stats Stats
	var sumConfidence, sumSimilarity float64

	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return Stats{}, fmt.Errorf("Scan mention records: %w", err)
		}
		for _, item := range result.Items {
			var rec ProcessedMention
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				log.Warn().Err(err).Msg("Skipping unparseable ledger record in stats scan")
				continue
			}
			stats.Total++
			sumConfidence += rec.Confidence
			sumSimilarity += rec.SimilarityScore
			switch rec.ResponseType {
			case "canned":
				stats.Canned++
			case "ai":
				stats.AI++
			}
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	if stats.Total > 0 {
		stats.AvgConfidence = sumConfidence / float64(stats.Total)
		stats.AvgSimilarity = sumSimilarity / float64(stats.Total)
	}
	return stats, nil
}

// --- Catalog ---

func (s *DynamoStore) ListCannedResponses(ctx context.Context) ([]CannedResponse, error) {
	input := &dynamodb.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: aws.String("begins_with(PK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: cannedPKPrefix},
		},
	}

	var entries []CannedResponse
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Scan canned responses: %w", err)
		}
		for _, item := range result.Items {
			var cr CannedResponse
			if err := attributevalue.UnmarshalMap(item, &cr); err != nil {
				return nil, fmt.Errorf("unmarshal canned response: %w", err)
			}
			if pk, ok := item["PK"].(*types.AttributeValueMemberS); ok {
				cr.ID = strings.TrimPrefix(pk.Value, cannedPKPrefix)
			}
			entries = append(entries, cr)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	// Scan order is partition order, not insertion order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, nil
}

func (s *DynamoStore) AddCannedResponse(ctx context.Context, cr CannedResponse) error {
	if cr.ID == "" {
		cr.ID = uuid.NewString()
	}
	if cr.Seq == 0 {
		cr.Seq = time.Now().UnixNano()
	}
	item, err := attributevalue.MarshalMap(cr)
	if err != nil {
		return fmt.Errorf("marshal canned response: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: cannedPKPrefix + cr.ID}
	item["SK"] = &types.AttributeValueMemberS{Value: skMeta}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem canned=%s: %w", cr.Keyword, err)
	}
	return nil
}

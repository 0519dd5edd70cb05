// Package archive writes the raw mentions fetched each polling cycle to S3
// as zstd-compressed JSON, one object per platform per cycle. The archive is
// an audit trail; the pipeline never reads it back.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-listener/internal/mention"
)

// S3Archiver stores cycle snapshots under
// mentions/<yyyy-mm-dd>/<platform>/<cycleID>.json.zst.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// New creates an S3Archiver for the given bucket.
func New(client *s3.Client, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

// ArchiveMentions compresses and uploads one platform's mentions for a cycle.
// A nil receiver is a no-op, so callers can wire archiving conditionally.
func (a *S3Archiver) ArchiveMentions(ctx context.Context, cycleID, platformName string, mentions []mention.Mention) error {
	if a == nil || len(mentions) == 0 {
		return nil
	}

	payload, err := json.Marshal(mentions)
	if err != nil {
		return fmt.Errorf("marshal mentions: %w", err)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := enc.Write(payload); err != nil {
		enc.Close()
		return fmt.Errorf("compress mentions: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish compression: %w", err)
	}

	key := fmt.Sprintf("mentions/%s/%s/%s.json.zst",
		time.Now().UTC().Format("2006-01-02"), platformName, cycleID)
	contentType := "application/zstd"

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("upload archive %s: %w", key, err)
	}

	log.Debug().
		Str("key", key).
		Int("mentions", len(mentions)).
		Int("compressed_bytes", buf.Len()).
		Msg("Cycle mentions archived to S3")
	return nil
}

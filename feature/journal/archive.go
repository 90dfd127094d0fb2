package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Prune archives every journal entry created before the cutoff to object
// storage and then deletes the rows. The upload happens before the delete:
// if the archive cannot be written, nothing is pruned and the audit trail
// stays intact. Returns the number of pruned entries.
func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("journal pruning requires archive storage")
	}

	var entries []Entry
	if err := s.db.Where("created_at < ?", cutoff).Order("id ASC").Find(&entries).Error; err != nil {
		return 0, fmt.Errorf("failed to load prunable entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal archive: %w", err)
	}

	if err := s.ensureBucket(ctx); err != nil {
		return 0, err
	}

	objName := fmt.Sprintf("journal/archive/%s.json", time.Now().UTC().Format("20060102T150405"))
	_, err = s.store.PutObject(ctx, s.bucket, objName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload archive %s: %w", objName, err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		ids := make([]uint, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		return tx.Where("id IN ?", ids).Delete(&Entry{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete archived entries: %w", err)
	}

	s.logger.Info("Journal pruned",
		zap.Int("entries", len(entries)),
		zap.String("archive", objName),
		zap.Time("cutoff", cutoff))
	return len(entries), nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.store.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check archive bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.store.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create archive bucket: %w", err)
	}
	return nil
}

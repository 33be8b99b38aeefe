// Package jobs runs scheduled maintenance.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"topup-store/internal/metrics"
	"topup-store/internal/supabase"
)

const listPage = 100

// ObjectLister is the slice of the storage API the sweeper needs.
type ObjectLister interface {
	List(ctx context.Context, bucket, prefix string, limit, offset int) ([]supabase.Object, error)
	Remove(ctx context.Context, bucket string, paths []string) error
	PublicURL(bucket, path string) string
}

// ReceiptIndex reports whether a deposit row references a receipt URL.
type ReceiptIndex interface {
	ReceiptInUse(ctx context.Context, receiptURL string) (bool, error)
}

// Sweeper deletes receipt uploads that no deposit request points at. These
// are left behind when a deposit insert fails and its cleanup also fails.
type Sweeper struct {
	objects ObjectLister
	index   ReceiptIndex
	bucket  string
	minAge  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewSweeper builds a sweeper for bucket. Objects younger than minAge are
// never touched so in-flight deposits are safe.
func NewSweeper(objects ObjectLister, index ReceiptIndex, bucket string, minAge time.Duration, logger *slog.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		objects: objects,
		index:   index,
		bucket:  bucket,
		minAge:  minAge,
		logger:  logger.With("component", "orphan_sweeper"),
		metrics: m,
		now:     time.Now,
	}
}

// Sweep runs one pass and returns the number of removed objects.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	folders, err := s.listAll(ctx, "")
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.minAge)

	removed := 0
	for _, folder := range folders {
		if !folder.IsFolder() {
			continue
		}
		entries, err := s.listAll(ctx, folder.Name)
		if err != nil {
			return removed, err
		}
		var orphans []string
		for _, obj := range entries {
			if obj.IsFolder() || obj.CreatedAt == nil || obj.CreatedAt.After(cutoff) {
				continue
			}
			p := path.Join(folder.Name, obj.Name)
			inUse, err := s.index.ReceiptInUse(ctx, s.objects.PublicURL(s.bucket, p))
			if err != nil {
				return removed, fmt.Errorf("check receipt %s: %w", p, err)
			}
			if !inUse {
				orphans = append(orphans, p)
			}
		}
		if len(orphans) == 0 {
			continue
		}
		if err := s.objects.Remove(ctx, s.bucket, orphans); err != nil {
			return removed, fmt.Errorf("remove orphans under %s: %w", folder.Name, err)
		}
		removed += len(orphans)
		s.logger.Info("orphaned receipts removed", "folder", folder.Name, "count", len(orphans))
	}
	return removed, nil
}

func (s *Sweeper) listAll(ctx context.Context, prefix string) ([]supabase.Object, error) {
	var out []supabase.Object
	for offset := 0; ; offset += listPage {
		page, err := s.objects.List(ctx, s.bucket, prefix, listPage, offset)
		if err != nil {
			return nil, fmt.Errorf("list receipts: %w", err)
		}
		out = append(out, page...)
		if len(page) < listPage {
			return out, nil
		}
	}
}

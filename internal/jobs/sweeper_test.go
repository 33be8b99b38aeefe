package jobs

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topup-store/internal/logging"
	"topup-store/internal/supabase"
)

type fakeBucket struct {
	tree    map[string][]supabase.Object
	removed []string
}

func (f *fakeBucket) List(_ context.Context, _, prefix string, limit, offset int) ([]supabase.Object, error) {
	all := f.tree[prefix]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeBucket) Remove(_ context.Context, _ string, paths []string) error {
	f.removed = append(f.removed, paths...)
	return nil
}

func (f *fakeBucket) PublicURL(bucket, p string) string {
	return "https://cdn/" + bucket + "/" + p
}

type urlSet map[string]bool

func (u urlSet) ReceiptInUse(_ context.Context, url string) (bool, error) {
	return u[url], nil
}

func object(name string, created time.Time) supabase.Object {
	id := "id-" + name
	return supabase.Object{Name: name, ID: &id, CreatedAt: &created}
}

func TestSweepRemovesOnlyOldUnreferenced(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-48 * time.Hour)
	fresh := now.Add(-time.Hour)

	bucket := &fakeBucket{tree: map[string][]supabase.Object{
		"": {{Name: "u1"}, {Name: "u2"}},
		"u1": {
			object("1.png", old),
			object("2.png", old),
			object("3.png", fresh),
		},
		"u2": {object("9.jpg", old)},
	}}
	index := urlSet{"https://cdn/receipts/u1/1.png": true, "https://cdn/receipts/u2/9.jpg": true}

	s := NewSweeper(bucket, index, "receipts", 24*time.Hour, logging.Discard(), nil)
	s.now = func() time.Time { return now }

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"u1/2.png"}, bucket.removed)
}

func TestSweepPagesThroughLargeFolders(t *testing.T) {
	now := time.Now()
	var objs []supabase.Object
	for i := 0; i < 250; i++ {
		objs = append(objs, object(time.Duration(i).String()+".png", now.Add(-72*time.Hour)))
	}
	bucket := &fakeBucket{tree: map[string][]supabase.Object{"": {{Name: "u"}}, "u": objs}}

	s := NewSweeper(bucket, urlSet{}, "receipts", time.Hour, logging.Discard(), nil)
	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	sort.Strings(bucket.removed)
	assert.Len(t, bucket.removed, 250)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	sc := NewScheduler(logging.Discard())
	s := NewSweeper(&fakeBucket{}, urlSet{}, "receipts", time.Hour, logging.Discard(), nil)
	require.Error(t, sc.AddSweeper("not a schedule", s, time.Minute))
	require.NoError(t, sc.AddSweeper("@every 6h", s, time.Minute))
	sc.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sc.Stop(ctx)
}

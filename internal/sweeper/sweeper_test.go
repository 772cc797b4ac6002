package sweeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/penshort/shortkv/internal/metrics"
	"github.com/penshort/shortkv/internal/model"
	"github.com/penshort/shortkv/internal/store"
	"github.com/penshort/shortkv/internal/testutil"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func seedPair(t *testing.T, st store.Store, code string, createdAt time.Time) {
	t.Helper()
	ctx := context.Background()

	rec, _ := json.Marshal(model.URLRecord{LongURL: "https://example.com/" + code, CreatedAt: createdAt, CreatorIP: "Unknown"})
	stats, _ := json.Marshal(model.NewStatsRecord())

	if err := st.Put(ctx, code, rec, 0); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if err := st.Put(ctx, model.StatsKey(code), stats, 0); err != nil {
		t.Fatalf("seed stats: %v", err)
	}
}

func countKeys(t *testing.T, st store.Store) int {
	t.Helper()
	n, cursor := 0, ""
	for {
		page, err := st.List(context.Background(), cursor, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		n += len(page.Keys)
		if page.Complete {
			return n
		}
		cursor = page.Cursor
	}
}

func exists(t *testing.T, st store.Store, key string) bool {
	t.Helper()
	ok, err := store.Exists(context.Background(), st, key)
	if err != nil {
		t.Fatalf("exists %q: %v", key, err)
	}
	return ok
}

func newTestSweeper(st store.Store, cfg Config, rec metrics.Recorder) *Sweeper {
	s := New(st, cfg, nil, rec)
	s.SetClock(func() time.Time { return now })
	return s
}

func TestSweep_DeletesExpiredPairsOnly(t *testing.T) {
	st := store.NewMemoryStore()
	seedPair(t, st, "oldcode1", now.Add(-40*24*time.Hour))
	seedPair(t, st, "newcode1", now.Add(-5*24*time.Hour))
	rec := metrics.NewInMemory()

	res, err := newTestSweeper(st, Config{}, rec).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if exists(t, st, "oldcode1") || exists(t, st, model.StatsKey("oldcode1")) {
		t.Error("expired pair should be deleted")
	}
	if !exists(t, st, "newcode1") || !exists(t, st, model.StatsKey("newcode1")) {
		t.Error("recent pair should be kept")
	}

	if res.Scanned != 2 || res.Deleted != 1 || res.Failed != 0 || res.Skipped != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.RunID == "" {
		t.Error("expected run id")
	}

	snap := rec.Snapshot()
	if snap.SweepRunsSuccess != 1 || snap.SweepDeleted != 1 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestSweep_CutoffBoundary(t *testing.T) {
	st := store.NewMemoryStore()
	seedPair(t, st, "exactly30", now.Add(-DefaultRetentionWindow))
	seedPair(t, st, "justover", now.Add(-DefaultRetentionWindow-time.Second))

	if _, err := newTestSweeper(st, Config{}, nil).Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if !exists(t, st, "exactly30") {
		t.Error("record created exactly at the cutoff should be kept")
	}
	if exists(t, st, "justover") {
		t.Error("record created before the cutoff should be deleted")
	}
}

func TestSweep_PaginatesPastOnePage(t *testing.T) {
	st := store.NewMemoryStore()
	for i := 0; i < 250; i++ {
		seedPair(t, st, fmt.Sprintf("old%05d", i), now.Add(-60*24*time.Hour))
	}
	for i := 0; i < 30; i++ {
		seedPair(t, st, fmt.Sprintf("new%05d", i), now.Add(-time.Hour))
	}

	res, err := newTestSweeper(st, Config{PageSize: 100}, nil).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if res.Scanned != 280 || res.Deleted != 250 {
		t.Errorf("result = %+v, want 280 scanned and 250 deleted", res)
	}
	if n := countKeys(t, st); n != 60 {
		t.Errorf("store has %d entries, want 60 (30 pairs)", n)
	}
	if res.Orphans != 0 {
		t.Errorf("Orphans = %d, stats of live records on other pages must be kept", res.Orphans)
	}
}

func TestSweep_SkipsUnparsableAndVanished(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	seedPair(t, st, "oldcode1", now.Add(-40*24*time.Hour))
	_ = st.Put(ctx, "garbage1", []byte("not json"), 0)
	_ = st.Put(ctx, "undated1", []byte(`{"longUrl":"https://example.com"}`), 0)

	res, err := newTestSweeper(st, Config{}, nil).Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if res.Deleted != 1 || res.Skipped != 2 {
		t.Errorf("result = %+v, want 1 deleted and 2 skipped", res)
	}
	if !exists(t, st, "garbage1") || !exists(t, st, "undated1") {
		t.Error("unparsable records must be left alone")
	}
}

func TestSweep_RemovesOrphanStats(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	stats, _ := json.Marshal(model.NewStatsRecord())
	if err := st.Put(ctx, model.StatsKey("orphan01"), stats, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	seedPair(t, st, "newcode1", now.Add(-time.Hour))
	rec := metrics.NewInMemory()

	res, err := newTestSweeper(st, Config{}, rec).Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if exists(t, st, model.StatsKey("orphan01")) {
		t.Error("stats without a record should be deleted")
	}
	if !exists(t, st, model.StatsKey("newcode1")) {
		t.Error("stats of a live record should be kept")
	}
	if res.Orphans != 1 || res.Scanned != 1 || res.Deleted != 0 {
		t.Errorf("result = %+v, want 1 orphan and 1 scanned", res)
	}
	if rec.Snapshot().SweepDeleted != 1 {
		t.Errorf("SweepDeleted = %d, want 1", rec.Snapshot().SweepDeleted)
	}
}

func TestSweep_StatsDeleteFailureLeavesOrphanForNextPass(t *testing.T) {
	st := &flakyStore{
		MemoryStore: store.NewMemoryStore(),
		failDelete:  map[string]bool{model.StatsKey("oldcode1"): true},
	}
	seedPair(t, st, "oldcode1", now.Add(-40*24*time.Hour))
	s := newTestSweeper(st, Config{}, nil)

	res, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("first Sweep: %v", err)
	}
	if res.Failed != 1 || exists(t, st, "oldcode1") {
		t.Fatalf("result = %+v, want record gone and one failure", res)
	}

	delete(st.failDelete, model.StatsKey("oldcode1"))
	res, err = s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if res.Orphans != 1 || exists(t, st, model.StatsKey("oldcode1")) {
		t.Errorf("result = %+v, want leftover stats removed", res)
	}
}

// flakyStore fails Delete for chosen keys.
type flakyStore struct {
	*store.MemoryStore
	failDelete map[string]bool
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if f.failDelete[key] {
		return errors.New("delete refused")
	}
	return f.MemoryStore.Delete(ctx, key)
}

func TestSweep_DeleteFailureDoesNotAbort(t *testing.T) {
	st := &flakyStore{
		MemoryStore: store.NewMemoryStore(),
		failDelete:  map[string]bool{"stuck001": true},
	}
	for _, code := range []string{"aaaa0001", "stuck001", "zzzz0001"} {
		seedPair(t, st, code, now.Add(-45*24*time.Hour))
	}
	rec := metrics.NewInMemory()

	res, err := newTestSweeper(st, Config{}, rec).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if res.Deleted != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want 2 deleted and 1 failed", res)
	}
	if !exists(t, st, "stuck001") {
		t.Error("record whose delete failed should remain")
	}
	if exists(t, st, "aaaa0001") || exists(t, st, "zzzz0001") {
		t.Error("other expired records should still be deleted")
	}
	if rec.Snapshot().SweepFailed != 1 {
		t.Errorf("SweepFailed = %d, want 1", rec.Snapshot().SweepFailed)
	}
}

// brokenListStore fails every List call.
type brokenListStore struct {
	*store.MemoryStore
}

func (b *brokenListStore) List(ctx context.Context, cursor string, limit int) (store.Page, error) {
	return store.Page{}, errors.New("list unavailable")
}

func TestSweep_ListFailureReturnsError(t *testing.T) {
	rec := metrics.NewInMemory()
	_, err := newTestSweeper(&brokenListStore{store.NewMemoryStore()}, Config{}, rec).Sweep(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if rec.Snapshot().SweepRunsFailed != 1 {
		t.Errorf("SweepRunsFailed = %d, want 1", rec.Snapshot().SweepRunsFailed)
	}
}

func TestSweep_CancelledContext(t *testing.T) {
	st := store.NewMemoryStore()
	seedPair(t, st, "oldcode1", now.Add(-40*24*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestSweeper(st, Config{}, nil).Sweep(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if !exists(t, st, "oldcode1") {
		t.Error("cancelled sweep should not delete")
	}
}

// blockingStore parks List until released.
type blockingStore struct {
	*store.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) List(ctx context.Context, cursor string, limit int) (store.Page, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.MemoryStore.List(ctx, cursor, limit)
}

func TestSweep_SingleFlight(t *testing.T) {
	st := &blockingStore{
		MemoryStore: store.NewMemoryStore(),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	s := newTestSweeper(st, Config{}, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Sweep(context.Background())
		errc <- err
	}()
	<-st.entered

	if _, err := s.Sweep(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("overlapping Sweep err = %v, want ErrAlreadyRunning", err)
	}

	close(st.release)
	if err := <-errc; err != nil {
		t.Errorf("first Sweep: %v", err)
	}
}

// purgingStore records PurgeExpired calls.
type purgingStore struct {
	*store.MemoryStore
	purged int64
}

func (p *purgingStore) PurgeExpired(ctx context.Context) (int64, error) {
	return p.purged, nil
}

func TestSweep_CallsPurger(t *testing.T) {
	st := &purgingStore{MemoryStore: store.NewMemoryStore(), purged: 7}

	res, err := newTestSweeper(st, Config{}, nil).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Purged != 7 {
		t.Errorf("Purged = %d, want 7", res.Purged)
	}
}

func TestSweep_RedisStore(t *testing.T) {
	_, client := testutil.NewMiniRedis(t)
	st := store.NewRedisStoreFromClient(client, store.DefaultRedisKeyPrefix)

	for i := 0; i < 120; i++ {
		seedPair(t, st, fmt.Sprintf("old%05d", i), now.Add(-31*24*time.Hour))
	}
	seedPair(t, st, "keepme01", now)

	// miniredis SCAN cursors are offsets into the live key list, so deleting
	// mid-scan would shift later keys; one page keeps the pass exact.
	res, err := newTestSweeper(st, Config{PageSize: 1000}, nil).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if res.Deleted != 120 {
		t.Errorf("Deleted = %d, want 120", res.Deleted)
	}
	if !exists(t, st, "keepme01") || !exists(t, st, model.StatsKey("keepme01")) {
		t.Error("recent pair should be kept")
	}
	if exists(t, st, model.StatsKey("old00042")) {
		t.Error("stats of expired record should be deleted")
	}
}

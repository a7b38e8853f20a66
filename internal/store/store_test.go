package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"roadsense/go-hub-server/internal/model"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "roadsense.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s
}

func testRecord(x int, state model.RoadState) model.ProcessedRecord {
	return model.ProcessedRecord{
		RoadState:     state,
		UserID:        42,
		Accelerometer: model.AccelerometerSample{X: x, Y: 0, Z: 9000},
		Gps:           model.GpsSample{Longitude: 30.5, Latitude: 50.4},
		Timestamp:     time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreateBatchAssignsOrderedIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	batch := []model.ProcessedRecord{
		testRecord(1, model.RoadStateBumpy),
		testRecord(2, model.RoadStateNormal),
		testRecord(3, model.RoadStateHilly),
	}

	stored, err := s.CreateBatch(ctx, batch)
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored %d records, want 3", len(stored))
	}

	seen := make(map[int64]bool)
	var prev int64
	for i, record := range stored {
		if record.ID <= prev {
			t.Errorf("record %d id = %d, want increasing ids", i, record.ID)
		}
		if seen[record.ID] {
			t.Errorf("record %d id = %d reused", i, record.ID)
		}
		seen[record.ID] = true
		prev = record.ID

		if record.Accelerometer.X != batch[i].Accelerometer.X {
			t.Errorf("record %d out of input order", i)
		}
	}
}

func TestGetByID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stored, err := s.CreateBatch(ctx, []model.ProcessedRecord{testRecord(1, model.RoadStateBumpy)})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}

	got, err := s.GetByID(ctx, stored[0].ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got != stored[0] {
		t.Errorf("got %+v, want %+v", got, stored[0])
	}

	if _, err := s.GetByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("get absent id: got %v, want ErrNotFound", err)
	}
}

func TestUpdateByIDReplacesAllFields(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stored, err := s.CreateBatch(ctx, []model.ProcessedRecord{testRecord(1, model.RoadStateBumpy)})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}

	// The replacement carries a road state that does not match its z value;
	// the store must take it verbatim.
	replacement := model.ProcessedRecord{
		RoadState:     model.RoadStateHilly,
		UserID:        7,
		Accelerometer: model.AccelerometerSample{X: 10, Y: 20, Z: 30},
		Gps:           model.GpsSample{Longitude: 1.5, Latitude: 2.5},
		Timestamp:     time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC),
	}

	updated, err := s.UpdateByID(ctx, stored[0].ID, replacement)
	if err != nil {
		t.Fatalf("update by id: %v", err)
	}
	if updated.ID != stored[0].ID {
		t.Errorf("updated id = %d, want %d", updated.ID, stored[0].ID)
	}

	got, err := s.GetByID(ctx, stored[0].ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.RoadState != model.RoadStateHilly {
		t.Errorf("road state = %q, want hilly (verbatim)", got.RoadState)
	}
	if got.UserID != 7 || got.Accelerometer != replacement.Accelerometer || got.Gps != replacement.Gps {
		t.Errorf("got %+v, want replacement fields %+v", got, replacement)
	}

	if _, err := s.UpdateByID(ctx, 9999, replacement); !errors.Is(err, ErrNotFound) {
		t.Errorf("update absent id: got %v, want ErrNotFound", err)
	}
}

func TestDeleteByIDReturnsPriorValue(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stored, err := s.CreateBatch(ctx, []model.ProcessedRecord{testRecord(1, model.RoadStateBumpy)})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}

	prior, err := s.DeleteByID(ctx, stored[0].ID)
	if err != nil {
		t.Fatalf("delete by id: %v", err)
	}
	if prior != stored[0] {
		t.Errorf("prior = %+v, want %+v", prior, stored[0])
	}

	if _, err := s.GetByID(ctx, stored[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted id: got %v, want ErrNotFound", err)
	}
	if _, err := s.DeleteByID(ctx, stored[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete absent id: got %v, want ErrNotFound", err)
	}
}

func TestDeletedIDsAreNeverReused(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stored, err := s.CreateBatch(ctx, []model.ProcessedRecord{testRecord(1, model.RoadStateBumpy)})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	deletedID := stored[0].ID

	if _, err := s.DeleteByID(ctx, deletedID); err != nil {
		t.Fatalf("delete by id: %v", err)
	}

	next, err := s.CreateBatch(ctx, []model.ProcessedRecord{testRecord(2, model.RoadStateNormal)})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if next[0].ID <= deletedID {
		t.Errorf("new id = %d, want greater than deleted id %d", next[0].ID, deletedID)
	}
}

func TestListAll(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	records, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("empty store listed %d records", len(records))
	}

	if _, err := s.CreateBatch(ctx, []model.ProcessedRecord{
		testRecord(1, model.RoadStateBumpy),
		testRecord(2, model.RoadStateNormal),
	}); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	records, err = s.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("listed %d records, want 2", len(records))
	}
	if records[0].ID >= records[1].ID {
		t.Errorf("listing not ordered by id: %d, %d", records[0].ID, records[1].ID)
	}
}

func TestConcurrentCreateBatches(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	const workers = 4
	const perWorker = 5

	var wg sync.WaitGroup
	idCh := make(chan int64, workers*perWorker)
	errCh := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			batch := make([]model.ProcessedRecord, perWorker)
			for i := range batch {
				batch[i] = testRecord(i, model.RoadStateNormal)
			}

			stored, err := s.CreateBatch(ctx, batch)
			if err != nil {
				errCh <- err
				return
			}
			for _, record := range stored {
				idCh <- record.ID
			}
		}()
	}

	wg.Wait()
	close(idCh)
	close(errCh)

	for err := range errCh {
		t.Fatalf("concurrent create batch: %v", err)
	}

	seen := make(map[int64]bool)
	for id := range idCh {
		if seen[id] {
			t.Fatalf("id %d assigned twice", id)
		}
		seen[id] = true
	}
	if len(seen) != workers*perWorker {
		t.Errorf("assigned %d ids, want %d", len(seen), workers*perWorker)
	}
}

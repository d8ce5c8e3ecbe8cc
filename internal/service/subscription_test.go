package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"accizard/internal/domain"
	"accizard/internal/service"
	"accizard/internal/storage/memory"
	"accizard/pkg/e"

	mock_service "accizard/internal/service/mocks"
)

func waitPins(t *testing.T, ch <-chan []domain.Pin) []domain.Pin {
	t.Helper()
	select {
	case pins := <-ch:
		return pins
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for subscription data")
		return nil
	}
}

func seedPin(t *testing.T, repo *memory.PinStore, typ domain.PinType, title string, createdAt time.Time) {
	t.Helper()
	err := repo.Create(context.Background(), &domain.Pin{
		Type:         typ,
		Title:        title,
		Latitude:     14.1,
		Longitude:    121.5,
		LocationName: "Lucban",
		CreatedAt:    createdAt,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestPinStore_Subscribe_DateRangeInclusive(t *testing.T) {
	t.Parallel()

	repo := memory.NewPinStore()
	store := service.NewPinStore(repo, memory.NewFeed(), newTestLogger())

	day := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }
	seedPin(t, repo, domain.PinFire, "before", day(1).Add(-time.Second))
	seedPin(t, repo, domain.PinFire, "start", day(1))
	seedPin(t, repo, domain.PinFire, "middle", day(2))
	seedPin(t, repo, domain.PinFire, "end", day(3))
	seedPin(t, repo, domain.PinFire, "after", day(3).Add(time.Second))

	from, to := day(1), day(3)
	data := make(chan []domain.Pin, 4)
	unsubscribe := store.Subscribe(context.Background(), domain.PinFilter{DateFrom: &from, DateTo: &to},
		func(p []domain.Pin) { data <- p },
		func(err error) { t.Errorf("unexpected error: %v", err) },
	)
	defer unsubscribe()

	got := waitPins(t, data)
	if len(got) != 3 {
		t.Fatalf("expected 3 pins inside [from, to], got %d", len(got))
	}
	for _, p := range got {
		if p.Title == "before" || p.Title == "after" {
			t.Fatalf("pin outside range delivered: %s", p.Title)
		}
	}
}

func TestPinStore_Subscribe_RequeriesOnChange(t *testing.T) {
	t.Parallel()

	repo := memory.NewPinStore()
	store := service.NewPinStore(repo, memory.NewFeed(), newTestLogger())
	ctx := context.Background()

	data := make(chan []domain.Pin, 8)
	unsubscribe := store.Subscribe(ctx, domain.PinFilter{Types: []domain.PinType{domain.PinFire}},
		func(p []domain.Pin) { data <- p },
		nil,
	)
	defer unsubscribe()

	if got := waitPins(t, data); len(got) != 0 {
		t.Fatalf("expected empty initial result, got %d", len(got))
	}

	if _, err := store.Create(ctx, domain.CreatePinData{
		Type: domain.PinFlooding, Title: "other", Latitude: f64ptr(1), Longitude: f64ptr(1), LocationName: "x",
	}, operator); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create(ctx, domain.CreatePinData{
		Type: domain.PinFire, Title: "match", Latitude: f64ptr(1), Longitude: f64ptr(1), LocationName: "x",
	}, operator); err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-data:
			if len(got) == 1 && got[0].Title == "match" {
				return
			}
		case <-deadline:
			t.Fatalf("never received the fire pin")
		}
	}
}

func TestPinStore_Subscribe_PermissionDeniedDeliversEmpty(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mock_service.NewMockPinRepository(ctrl)
	repo.EXPECT().
		Query(gomock.Any(), gomock.Any()).
		Return(nil, e.NewStoreError(e.CodePermissionDenied, "no matching documents")).
		AnyTimes()

	store := service.NewPinStore(repo, memory.NewFeed(), newTestLogger())

	data := make(chan []domain.Pin, 1)
	unsubscribe := store.Subscribe(context.Background(), domain.PinFilter{},
		func(p []domain.Pin) { data <- p },
		func(err error) { t.Errorf("permission denied must not reach onError: %v", err) },
	)
	defer unsubscribe()

	got := waitPins(t, data)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", got)
	}
}

func TestPinStore_Subscribe_QueryErrorReachesOnError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mock_service.NewMockPinRepository(ctrl)
	repo.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom")).AnyTimes()

	store := service.NewPinStore(repo, memory.NewFeed(), newTestLogger())

	errs := make(chan error, 1)
	unsubscribe := store.Subscribe(context.Background(), domain.PinFilter{},
		func(p []domain.Pin) { t.Errorf("unexpected data: %v", p) },
		func(err error) { errs <- err },
	)
	defer unsubscribe()

	select {
	case err := <-errs:
		if !errors.Is(err, e.ErrPersistence) {
			t.Fatalf("expected ErrPersistence, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for error")
	}
}

func TestWatcher_SetFilter_SingleLiveSubscription(t *testing.T) {
	t.Parallel()

	repo := memory.NewPinStore()
	feed := memory.NewFeed()
	store := service.NewPinStore(repo, feed, newTestLogger())

	var mu sync.Mutex
	var deliveries int
	w := store.NewWatcher(context.Background(), func([]domain.Pin) {
		mu.Lock()
		deliveries++
		mu.Unlock()
	}, nil)

	filters := []domain.PinFilter{
		{Types: []domain.PinType{domain.PinFire}},
		{Types: []domain.PinType{domain.PinFire, domain.PinFlooding}},
		{Types: []domain.PinType{domain.PinFlooding, domain.PinFire}},
		{SearchQuery: "bridge"},
		{},
	}
	for i, f := range filters {
		w.SetFilter(f)
		if n := store.LiveSubscriptions(); n != 1 {
			t.Fatalf("step %d: expected 1 live subscription, got %d", i, n)
		}
		if n := feed.Subscribers(); n != 1 {
			t.Fatalf("step %d: expected 1 feed subscriber, got %d", i, n)
		}
	}

	w.Close()
	if n := store.LiveSubscriptions(); n != 0 {
		t.Fatalf("expected no live subscription after Close, got %d", n)
	}
	if n := feed.Subscribers(); n != 0 {
		t.Fatalf("expected no feed subscriber after Close, got %d", n)
	}

	mu.Lock()
	before := deliveries
	mu.Unlock()

	seedPin(t, repo, domain.PinFire, "late", time.Now().UTC())
	_ = feed.Publish(context.Background(), domain.PinChange{Op: domain.PinCreated})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if deliveries != before {
		t.Fatalf("closed watcher kept delivering: %d -> %d", before, deliveries)
	}
}

func TestWatcher_EqualFilterKeepsSubscription(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mock_service.NewMockPinRepository(ctrl)
	repo.EXPECT().Query(gomock.Any(), gomock.Any()).Return([]domain.Pin{}, nil).AnyTimes()

	feed := mock_service.NewMockChangeFeed(ctrl)
	ch := make(chan domain.PinChange)
	feed.EXPECT().
		Subscribe(gomock.Any()).
		Return((<-chan domain.PinChange)(ch), func() {}, nil).
		Times(1)

	store := service.NewPinStore(repo, feed, newTestLogger())
	w := store.NewWatcher(context.Background(), func([]domain.Pin) {}, nil)
	defer w.Close()

	w.SetFilter(domain.PinFilter{Types: []domain.PinType{domain.PinFire, domain.PinLandslide}})
	w.SetFilter(domain.PinFilter{Types: []domain.PinType{domain.PinLandslide, domain.PinFire}})

	if f, ok := w.Filter(); !ok || len(f.Types) != 2 {
		t.Fatalf("unexpected watcher filter %+v ok=%v", f, ok)
	}
}

package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/b3eb0o/LyngvigFyr/internal/db"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	repo := NewRepository(database.Conn())
	return database, repo
}

func TestRepository_UpsertAndGetDay(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	sunrise := time.Date(2024, 6, 1, 4, 30, 0, 0, time.UTC)
	day := &Day{
		Date:            "2024-06-01",
		Status:          DayStatusScheduled,
		Sunrise:         sunrise,
		Sunset:          sunrise.Add(17 * time.Hour),
		CaptureStart:    sunrise.Add(-30 * time.Minute),
		CaptureEnd:      sunrise.Add(17*time.Hour + 45*time.Minute),
		IntervalSeconds: 13,
		FramesTarget:    4915,
	}
	if err := repo.UpsertDay(ctx, day); err != nil {
		t.Fatalf("UpsertDay() error = %v", err)
	}
	created := day.CreatedAt

	day.Status = DayStatusCompleted
	day.FramesCaptured = 4915
	day.VideoPath = "/videos/lyngvig_fyr/lyngvig_fyr_2024-06-01.mp4"
	day.VideoBytes = 1 << 20
	if err := repo.UpsertDay(ctx, day); err != nil {
		t.Fatalf("second UpsertDay() error = %v", err)
	}

	got, err := repo.GetDay(ctx, "2024-06-01")
	if err != nil {
		t.Fatalf("GetDay() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetDay() returned nil")
	}
	if got.Status != DayStatusCompleted || got.FramesCaptured != 4915 || got.VideoBytes != 1<<20 {
		t.Errorf("day = %+v", got)
	}
	if !got.Sunrise.Equal(sunrise) {
		t.Errorf("Sunrise = %v, want %v", got.Sunrise, sunrise)
	}
	if !got.CreatedAt.Equal(created.Truncate(time.Second)) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if !got.IsTerminal() {
		t.Error("completed day should be terminal")
	}
}

func TestRepository_GetDay_Missing(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	got, err := repo.GetDay(context.Background(), "1999-01-01")
	if err != nil {
		t.Fatalf("GetDay() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetDay() = %+v, want nil", got)
	}
}

func TestRepository_ListDays(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	for _, date := range []string{"2024-06-01", "2024-06-03", "2024-06-02"} {
		if err := repo.UpsertDay(ctx, &Day{Date: date, Status: DayStatusSkipped}); err != nil {
			t.Fatal(err)
		}
	}

	days, err := repo.ListDays(ctx, 2)
	if err != nil {
		t.Fatalf("ListDays() error = %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len = %d, want 2", len(days))
	}
	if days[0].Date != "2024-06-03" || days[1].Date != "2024-06-02" {
		t.Errorf("order = %s, %s", days[0].Date, days[1].Date)
	}
	if !days[0].Sunrise.IsZero() {
		t.Error("unset sunrise should stay zero")
	}
}

func TestDay_IsTerminal(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{DayStatusScheduled, false},
		{DayStatusCapturing, false},
		{DayStatusAssembling, false},
		{DayStatusInterrupted, false},
		{DayStatusCompleted, true},
		{DayStatusFailed, true},
		{DayStatusSkipped, true},
	}
	for _, tt := range tests {
		d := &Day{Status: tt.status}
		if got := d.IsTerminal(); got != tt.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestService_EnsureAuthToken(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	svc := NewService(repo, nil)
	first, err := svc.EnsureAuthToken(ctx)
	if err != nil {
		t.Fatalf("EnsureAuthToken() error = %v", err)
	}
	if len(first) != 64 {
		t.Errorf("token length = %d, want 64", len(first))
	}

	second, err := svc.EnsureAuthToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("token should be stable across calls")
	}
}

func TestService_CachedValue(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()
	svc := NewService(repo, nil)

	type point struct{ Lat, Lng float64 }
	var p point
	ok, err := svc.CachedValue(ctx, ConfigKeyLocationCache+"x", &p)
	if err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	if err := svc.StoreValue(ctx, ConfigKeyLocationCache+"x", point{56.04, 8.10}); err != nil {
		t.Fatal(err)
	}
	ok, err = svc.CachedValue(ctx, ConfigKeyLocationCache+"x", &p)
	if err != nil || !ok {
		t.Fatalf("cached: ok=%v err=%v", ok, err)
	}
	if p.Lat != 56.04 || p.Lng != 8.10 {
		t.Errorf("p = %+v", p)
	}

	if err := repo.SetConfig(ctx, "bad", "{not json"); err != nil {
		t.Fatal(err)
	}
	ok, err = svc.CachedValue(ctx, "bad", &p)
	if err != nil || ok {
		t.Errorf("corrupt entry: ok=%v err=%v", ok, err)
	}
}

package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/snappy-loop/animator/internal/models"
	"github.com/snappy-loop/animator/migrations"
)

// openTestDB connects to DATABASE_URL and applies migrations, skipping when unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	db, err := Connect(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(context.Background(), db.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestAnimationRepository_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewAnimationRepository(db)
	ctx := context.Background()

	created := time.Now().UTC().Truncate(time.Microsecond)
	a := &models.Animation{
		ID:        uuid.New(),
		Status:    models.AnimationRunning,
		Model:     "veo-3.1-fast-generate-preview",
		Prompt:    "wave",
		ImageURL:  "https://images.example/panda.jpeg",
		CreatedAt: created,
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	finished := created.Add(42 * time.Second)
	mediaID := uuid.New()
	op := "operations/abc"
	mime := "video/mp4"
	a.Status = models.AnimationSucceeded
	a.OperationName = &op
	a.MediaID = &mediaID
	a.MimeType = &mime
	a.SizeBytes = 2048
	a.FinishedAt = &finished
	if err := repo.Finish(ctx, a); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.AnimationSucceeded || got.SizeBytes != 2048 {
		t.Errorf("got %+v", got)
	}
	if got.MediaID == nil || *got.MediaID != mediaID {
		t.Errorf("media_id = %v, want %s", got.MediaID, mediaID)
	}
	if got.OperationName == nil || *got.OperationName != op {
		t.Errorf("operation_name = %v", got.OperationName)
	}

	list, err := repo.List(ctx, 10, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, item := range list {
		if item.ID == a.ID {
			found = true
		}
	}
	if !found {
		t.Error("created animation missing from List")
	}
}

func TestAnimationRepository_FinishWithoutCreate(t *testing.T) {
	db := openTestDB(t)
	repo := NewAnimationRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	kind := "timeout"
	msg := "poll: context deadline exceeded"
	a := &models.Animation{
		ID:           uuid.New(),
		Status:       models.AnimationFailed,
		Model:        "veo",
		Prompt:       "wave",
		ImageURL:     "https://images.example/panda.jpeg",
		ErrorKind:    &kind,
		ErrorMessage: &msg,
		CreatedAt:    now,
		FinishedAt:   &now,
	}
	if err := repo.Finish(ctx, a); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ErrorKind == nil || *got.ErrorKind != kind || got.MediaID != nil {
		t.Errorf("got %+v", got)
	}
}

func TestAnimationRepository_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewAnimationRepository(db)

	if _, err := repo.GetByID(context.Background(), uuid.New()); !errors.Is(err, ErrAnimationNotFound) {
		t.Errorf("err = %v, want ErrAnimationNotFound", err)
	}
}

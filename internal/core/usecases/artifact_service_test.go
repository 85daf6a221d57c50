package usecases_test

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/samirrijal/superres/internal/core/domain"
	"github.com/samirrijal/superres/internal/core/usecases"
)

func TestArtifactService_Bundle(t *testing.T) {
	f := newFixture()
	f.writeRasters("a.tif", "b.png")
	job, _ := f.svc.Submit(context.Background(), varanasi, "2025-07-01")

	svc := usecases.NewArtifactService(f.svc, f.store)
	archive, err := svc.Bundle(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if archive.Name != "sentinel2_superres_2025-07-01.zip" {
		t.Errorf("unexpected archive name %s", archive.Name)
	}

	zr, err := zip.NewReader(archive.Reader, archive.Size)
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Errorf("expected 2 entries, got %d", len(zr.File))
	}
}

func TestArtifactService_UnknownJob(t *testing.T) {
	f := newFixture()
	svc := usecases.NewArtifactService(f.svc, f.store)

	if _, err := svc.List(context.Background(), "nope"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("List: expected ErrJobNotFound, got %v", err)
	}
	if _, err := svc.Bundle(context.Background(), "nope"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("Bundle: expected ErrJobNotFound, got %v", err)
	}
}

func TestArtifactService_Open(t *testing.T) {
	f := newFixture()
	f.writeRasters("a.tif")
	job, _ := f.svc.Submit(context.Background(), varanasi, "2025-07-01")

	svc := usecases.NewArtifactService(f.svc, f.store)
	rc, art, err := svc.Open(context.Background(), job.ID, "a.tif")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if int64(len(data)) != art.Size || art.Size != 1024 {
		t.Errorf("expected 1024 bytes, got %d (artifact says %d)", len(data), art.Size)
	}
}

func TestArtifactService_Clear(t *testing.T) {
	f := newFixture()
	f.writeRasters("a.tif")
	job, _ := f.svc.Submit(context.Background(), varanasi, "2025-07-01")

	svc := usecases.NewArtifactService(f.svc, f.store)
	if err := svc.Clear(context.Background(), job.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := svc.List(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no rasters after clear, got %d", len(list))
	}
	if stored := f.repo.get(job.ID); stored.TotalBytes != 0 || len(stored.Artifacts) != 0 {
		t.Errorf("stored job still lists artifacts: %+v", stored)
	}
}

func TestArtifactService_Clear_RunningJob(t *testing.T) {
	f := newFixture()
	_ = f.repo.Create(context.Background(), &domain.Job{ID: "busy", Status: domain.JobRunning})

	svc := usecases.NewArtifactService(f.svc, f.store)
	if err := svc.Clear(context.Background(), "busy"); !errors.Is(err, domain.ErrJobRunning) {
		t.Errorf("expected ErrJobRunning, got %v", err)
	}
}

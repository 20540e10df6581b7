package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"casaview/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(Config{DatabasePath: filepath.Join(t.TempDir(), "cameras.db")})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testCamera(id, name string) models.Camera {
	now := time.Now().UTC().Truncate(time.Second)
	return models.Camera{
		ID:        id,
		Name:      name,
		StreamURL: "http://cam.local/" + id,
		Type:      models.StreamTypeMJPEG,
		Enabled:   true,
		Username:  "admin",
		Password:  "secret",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCameraRoundTrip(t *testing.T) {
	db := openTestDB(t)

	cam := testCamera("cam-1", "Front Door")
	if err := db.Cameras.Insert(cam); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := db.Cameras.Get("cam-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != cam.Name || got.StreamURL != cam.StreamURL || got.Type != cam.Type {
		t.Fatalf("got %+v, want %+v", got, cam)
	}
	if !got.Enabled {
		t.Fatalf("enabled flag lost in round trip")
	}
	if got.Username != "admin" || got.Password != "secret" {
		t.Fatalf("credentials lost in round trip")
	}
}

func TestListOrdersByName(t *testing.T) {
	db := openTestDB(t)

	for _, cam := range []models.Camera{
		testCamera("cam-2", "Porch"),
		testCamera("cam-1", "Front Door"),
		testCamera("cam-3", "Garage"),
	} {
		if err := db.Cameras.Insert(cam); err != nil {
			t.Fatalf("insert %s: %v", cam.ID, err)
		}
	}

	cams, err := db.Cameras.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cams) != 3 {
		t.Fatalf("expected 3 cameras, got %d", len(cams))
	}
	want := []string{"Front Door", "Garage", "Porch"}
	for i, name := range want {
		if cams[i].Name != name {
			t.Fatalf("position %d = %q, want %q", i, cams[i].Name, name)
		}
	}
}

func TestUpdatePersistsChanges(t *testing.T) {
	db := openTestDB(t)

	cam := testCamera("cam-1", "Front Door")
	if err := db.Cameras.Insert(cam); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cam.Name = "Main Entrance"
	cam.Enabled = false
	if err := db.Cameras.Update(cam); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := db.Cameras.Get("cam-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Main Entrance" || got.Enabled {
		t.Fatalf("update not persisted: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("expected updated_at to move forward")
	}
}

func TestNotFoundConditions(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Cameras.Get("missing"); !errors.Is(err, ErrCameraNotFound) {
		t.Fatalf("get: expected ErrCameraNotFound, got %v", err)
	}
	if err := db.Cameras.Update(testCamera("missing", "Ghost")); !errors.Is(err, ErrCameraNotFound) {
		t.Fatalf("update: expected ErrCameraNotFound, got %v", err)
	}
	if err := db.Cameras.Delete("missing"); !errors.Is(err, ErrCameraNotFound) {
		t.Fatalf("delete: expected ErrCameraNotFound, got %v", err)
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	db := openTestDB(t)

	if err := db.Cameras.Insert(testCamera("cam-1", "Front Door")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.Cameras.Delete("cam-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Cameras.Get("cam-1"); !errors.Is(err, ErrCameraNotFound) {
		t.Fatalf("expected ErrCameraNotFound after delete, got %v", err)
	}
}

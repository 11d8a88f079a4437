package imagestore

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"net/http/httptest"
	"strings"
	"testing"
)

func testPhoto(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			img.Set(x, y, color.RGBA{0, 255, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSaveAndRelease(t *testing.T) {
	s := newTestStore(t)

	ref, err := s.Save(bytes.NewReader(testPhoto(t)))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(ref, RefPrefix) {
		t.Errorf("expected ref under %q, got %q", RefPrefix, ref)
	}
	if !s.Exists(ref) {
		t.Error("expected saved photo to exist")
	}

	if err := s.Release(ref); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if s.Exists(ref) {
		t.Error("expected photo to be gone after release")
	}

	// Releasing again is not an error.
	if err := s.Release(ref); err != nil {
		t.Errorf("second Release: %v", err)
	}
}

func TestSaveRejectsNonImage(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save(strings.NewReader("not a photo")); err == nil {
		t.Error("expected error for non-image upload")
	}
}

func TestServeHTTP(t *testing.T) {
	s := newTestStore(t)
	ref, err := s.Save(bytes.NewReader(testPhoto(t)))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", ref, nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", RefPrefix+"missing.jpg", nil))
	if rec.Code != 404 {
		t.Errorf("expected 404 for missing photo, got %d", rec.Code)
	}
}

func TestRejectsTraversalRefs(t *testing.T) {
	s := newTestStore(t)

	for _, ref := range []string{
		RefPrefix + "../secret.jpg",
		RefPrefix + "a/b.jpg",
		RefPrefix,
		"plain.jpg/../..",
	} {
		if s.Exists(ref) {
			t.Errorf("Exists(%q) = true, want false", ref)
		}
	}
}

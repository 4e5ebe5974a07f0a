package store

import (
	"regexp"
	"testing"

	"github.com/jo-hoe/goinfer/internal/detect"
)

func newTestStore(t *testing.T) Service {
	t.Helper()
	service, err := New("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		_ = service.Close()
	})
	return service
}

func sampleDetections() []detect.Detection {
	return []detect.Detection{
		{Box: detect.Box{X1: 10, Y1: 20, X2: 110, Y2: 90}, Score: 0.93, Label: 1, Color: "red", Hex: "#F00000"},
		{Box: detect.Box{X1: 5, Y1: 5, X2: 25, Y2: 25}, Score: 0.71, Color: "blue", Hex: "#0000F0"},
	}
}

func TestCreateAndGet(t *testing.T) {
	service := newTestStore(t)

	image := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	id, err := service.Create("street.png", image, sampleDetections())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`).MatchString(id) {
		t.Errorf("id %q is not a v4 UUID", id)
	}

	record, err := service.Get(id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if record.Name != "street.png" {
		t.Errorf("name = %q", record.Name)
	}
	if len(record.Image) != len(image) {
		t.Errorf("image has %d bytes, want %d", len(record.Image), len(image))
	}
	if len(record.Detections) != 2 {
		t.Fatalf("got %d detections, want 2", len(record.Detections))
	}
	if record.Detections[0].Color != "red" || record.Detections[0].Score != 0.93 {
		t.Errorf("detection round trip mismatch: %+v", record.Detections[0])
	}
	if record.CreatedAt.IsZero() {
		t.Errorf("created_at was not set")
	}
}

func TestList_OmitsImagePayload(t *testing.T) {
	service := newTestStore(t)

	if _, err := service.Create("a.png", []byte{1}, nil); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := service.Create("b.png", []byte{2}, sampleDetections()); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	records, err := service.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, record := range records {
		if record.Image != nil {
			t.Errorf("record %s carries image payload in list", record.ID)
		}
	}
}

func TestImageByID(t *testing.T) {
	service := newTestStore(t)

	id, err := service.Create("c.png", []byte{7, 8, 9}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	image, err := service.ImageByID(id)
	if err != nil {
		t.Fatalf("ImageByID error: %v", err)
	}
	if len(image) != 3 || image[0] != 7 {
		t.Errorf("image = %v", image)
	}

	if _, err = service.ImageByID("missing"); err == nil {
		t.Errorf("expected error for unknown id")
	}
}

func TestDelete(t *testing.T) {
	service := newTestStore(t)

	id, err := service.Create("d.png", []byte{1}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err = service.Delete(id); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err = service.Get(id); err == nil {
		t.Errorf("expected error getting deleted record")
	}

	// Deleting an unknown id is a no-op.
	if err = service.Delete("missing"); err != nil {
		t.Errorf("Delete of unknown id returned %v", err)
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := New("postgres", ""); err == nil {
		t.Errorf("expected error for unsupported driver")
	}
}

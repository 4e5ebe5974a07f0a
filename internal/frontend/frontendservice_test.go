package frontend

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/goinfer/internal/core"
)

const frontendTestModel = `{
	"schema": 1,
	"metadata": {"name": "rect-detector"},
	"inputs": [{"name": "image", "dtype": "uint8", "shape": [1, -1, -1, 4]}],
	"outputs": [
		{"name": "boxes", "dtype": "float32", "shape": [1, -1, 4]},
		{"name": "scores", "dtype": "float32", "shape": [1, -1]},
		{"name": "labels", "dtype": "int64", "shape": [1, -1]}
	],
	"params": {"minArea": 200, "minScore": 0.4}
}`

var testServer *echo.Echo

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "frontend-test")
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	modelPath := filepath.Join(dir, "detector.json")
	if err = os.WriteFile(modelPath, []byte(frontendTestModel), 0o600); err != nil {
		panic(err)
	}

	config := &core.ServiceConfig{
		Port:      8080,
		ModelPath: modelPath,
		Backend:   "inprocess",
		Database:  core.DatabaseConfig{Type: "sqlite", ConnectionString: ":memory:"},
		Detector:  core.DetectorConfig{ScoreThreshold: 0.4},
	}
	coreService, err := core.NewCoreService(context.Background(), config)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = coreService.Close()
	}()

	testServer = echo.New()
	NewFrontendService(coreService).SetRoutes(testServer)

	os.Exit(m.Run())
}

// rectanglePNG renders a white canvas with a black rectangle outline.
func rectanglePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	black := color.NRGBA{A: 0xff}
	for x := 20; x <= 70; x++ {
		img.SetNRGBA(x, 30, black)
		img.SetNRGBA(x, 80, black)
	}
	for y := 30; y <= 80; y++ {
		img.SetNRGBA(20, y, black)
		img.SetNRGBA(70, y, black)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode error: %v", err)
	}
	return buf.Bytes()
}

func uploadImage(t *testing.T, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err = part.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err = writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	request := httptest.NewRequest(http.MethodPost, "/htmx/classify", &body)
	request.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	testServer.ServeHTTP(recorder, request)
	return recorder
}

func get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodGet, path, nil)
	recorder := httptest.NewRecorder()
	testServer.ServeHTTP(recorder, request)
	return recorder
}

func TestIndexPage(t *testing.T) {
	recorder := get(t, "/index.html")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	page := recorder.Body.String()
	if !strings.Contains(page, `type="file"`) {
		t.Errorf("page has no image selector")
	}
	if !strings.Contains(page, ">Classify</button>") {
		t.Errorf("page has no classify button")
	}
}

func TestRootRedirectsToIndex(t *testing.T) {
	recorder := get(t, "/")
	if recorder.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d", recorder.Code)
	}
	if location := recorder.Header().Get(echo.HeaderLocation); location != "/index.html" {
		t.Errorf("location = %q", location)
	}
}

func TestProbe(t *testing.T) {
	if recorder := get(t, "/probe"); recorder.Code != http.StatusOK {
		t.Errorf("status = %d", recorder.Code)
	}
}

func TestClassifyUploadFlow(t *testing.T) {
	recorder := uploadImage(t, "rect.png", rectanglePNG(t))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body.String())
	}
	response := recorder.Body.String()
	if !strings.Contains(response, "Classified rect.png") {
		t.Errorf("response has no classification summary: %s", response)
	}
	if !strings.Contains(response, `hx-swap-oob="true"`) {
		t.Errorf("response has no OOB result list update")
	}

	// The result shows up in the list with a thumbnail and can be fetched.
	listRecorder := get(t, "/htmx/results")
	if listRecorder.Code != http.StatusOK {
		t.Fatalf("list status = %d", listRecorder.Code)
	}
	list := listRecorder.Body.String()
	idMatch := regexp.MustCompile(`/htmx/result/thumb/([0-9a-f-]+)`).FindStringSubmatch(list)
	if idMatch == nil {
		t.Fatalf("no thumbnail link in list: %s", list)
	}

	thumbRecorder := get(t, "/htmx/result/thumb/"+idMatch[1])
	if thumbRecorder.Code != http.StatusOK {
		t.Fatalf("thumbnail status = %d", thumbRecorder.Code)
	}
	if _, err := png.Decode(thumbRecorder.Body); err != nil {
		t.Errorf("thumbnail does not decode as PNG: %v", err)
	}

	// Delete removes the record from the rendered list.
	deleteRequest := httptest.NewRequest(http.MethodDelete, "/htmx/result/"+idMatch[1], nil)
	deleteRecorder := httptest.NewRecorder()
	testServer.ServeHTTP(deleteRecorder, deleteRequest)
	if deleteRecorder.Code != http.StatusOK {
		t.Fatalf("delete status = %d", deleteRecorder.Code)
	}
	if strings.Contains(deleteRecorder.Body.String(), idMatch[1]) {
		t.Errorf("deleted record still rendered")
	}
}

func TestClassifyRejectsGarbage(t *testing.T) {
	recorder := uploadImage(t, "garbage.bin", []byte("not an image"))
	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", recorder.Code)
	}
}

func TestThumbnailUnknownID(t *testing.T) {
	if recorder := get(t, "/htmx/result/thumb/unknown"); recorder.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", recorder.Code)
	}
}

func TestIcon(t *testing.T) {
	recorder := get(t, "/icon.svg")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "<svg") {
		t.Errorf("icon is not SVG")
	}
}

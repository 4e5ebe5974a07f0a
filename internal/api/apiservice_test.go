package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/goinfer/internal/common"
	"github.com/jo-hoe/goinfer/internal/core"
)

const apiTestModel = `{
	"schema": 1,
	"metadata": {"name": "rect-detector"},
	"inputs": [{"name": "image", "dtype": "uint8", "shape": [1, -1, -1, 4]}],
	"outputs": [
		{"name": "boxes", "dtype": "float32", "shape": [1, -1, 4]},
		{"name": "scores", "dtype": "float32", "shape": [1, -1]},
		{"name": "labels", "dtype": "int64", "shape": [1, -1]}
	]
}`

var testServer *echo.Echo

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "api-test")
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	modelPath := filepath.Join(dir, "detector.json")
	if err = os.WriteFile(modelPath, []byte(apiTestModel), 0o600); err != nil {
		panic(err)
	}

	config := &core.ServiceConfig{
		Port:      8080,
		ModelPath: modelPath,
		Backend:   "inprocess",
		Database:  core.DatabaseConfig{Type: "sqlite", ConnectionString: ":memory:"},
		Labels:    []core.LabelConfig{{ID: 0, Name: "object"}},
	}
	coreService, err := core.NewCoreService(context.Background(), config)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = coreService.Close()
	}()

	testServer = echo.New()
	testServer.Validator = &common.GenericEchoValidator{}
	NewAPIService(coreService).SetRoutes(testServer)

	os.Exit(m.Run())
}

func postClassify(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(body))
	request.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	recorder := httptest.NewRecorder()
	testServer.ServeHTTP(recorder, request)
	return recorder
}

func TestClassify(t *testing.T) {
	pixels := make([]byte, 4*4*4)
	body, err := json.Marshal(map[string]any{"width": 4, "height": 4, "pixels": pixels})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	recorder := postClassify(t, string(body))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body.String())
	}

	var response struct {
		Detections []json.RawMessage `json:"detections"`
	}
	if err = json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("response decode error: %v", err)
	}
	if response.Detections == nil {
		t.Errorf("detections field missing from response")
	}
}

func TestClassify_BufferLengthMismatch(t *testing.T) {
	pixels := make([]byte, 10)
	body, err := json.Marshal(map[string]any{"width": 4, "height": 4, "pixels": pixels})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	recorder := postClassify(t, string(body))
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", recorder.Code)
	}
}

func TestClassify_OverflowingDimensions(t *testing.T) {
	// A width/height pair whose byte count wraps past the int range must be
	// rejected like any other bad argument, not crash the evaluator.
	pixels := make([]byte, 4)
	body, err := json.Marshal(map[string]any{"width": 1, "height": math.MaxInt/4 + 1, "pixels": pixels})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	recorder := postClassify(t, string(body))
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body %s", recorder.Code, recorder.Body.String())
	}
}

func TestClassify_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing width", `{"height": 4, "pixels": "AAAA"}`},
		{"negative height", `{"width": 4, "height": -1, "pixels": "AAAA"}`},
		{"missing pixels", `{"width": 4, "height": 4}`},
		{"not json", `width=4`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			recorder := postClassify(t, test.body)
			if recorder.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", recorder.Code)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
	recorder := httptest.NewRecorder()
	testServer.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var response struct {
		Build string `json:"build"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("response decode error: %v", err)
	}
	if response.Model != "rect-detector" {
		t.Errorf("model = %q", response.Model)
	}
	if !strings.Contains(response.Build, "goinfer") {
		t.Errorf("build = %q", response.Build)
	}
}

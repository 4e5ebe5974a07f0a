// Package frontend serves the browser demo: a page with an image selector
// and a classify button, backed by HTMX endpoints that run detection and
// render the stored results.
package frontend

import (
	"bytes"
	"fmt"
	"html"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/disintegration/imaging"
	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/goinfer/internal/core"
	"github.com/jo-hoe/goinfer/internal/store"
	"github.com/jo-hoe/goinfer/internal/telemetry"
)

const (
	MainPageName   = "index.html"
	mimePNG        = "image/png"
	thumbnailWidth = 240
)

type FrontendService struct {
	coreService *core.CoreService
	logger      *slog.Logger
}

func NewFrontendService(coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		logger:      telemetry.Logger("frontend"),
	}
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = &Template{
		templates: template.Must(template.New("").ParseFS(templateFS, viewsPattern)),
	}

	e.GET("/", service.rootRedirectHandler)
	e.GET("/"+MainPageName, service.indexHandler)
	e.GET("/probe", service.probeHandler)

	e.POST("/htmx/classify", service.htmxClassifyHandler)
	e.GET("/htmx/results", service.htmxListResultsHandler)
	e.GET("/htmx/result/thumb/:id", service.htmxThumbnailHandler)
	e.DELETE("/htmx/result/:id", service.htmxDeleteResultHandler)

	e.GET("/icon.svg", service.iconHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, MainPageName, nil)
}

func (service *FrontendService) probeHandler(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "ok")
}

func (service *FrontendService) htmxClassifyHandler(ctx echo.Context) error {
	file, err := ctx.FormFile("image")
	if err != nil {
		service.logger.Error("htmxClassifyHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to get uploaded file")
	}

	src, err := file.Open()
	if err != nil {
		service.logger.Error("htmxClassifyHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to open uploaded file")
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			service.logger.Error("htmxClassifyHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		service.logger.Error("htmxClassifyHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to read uploaded file")
	}

	record, err := service.coreService.ClassifyAndStore(ctx.Request().Context(), file.Filename, data)
	if err != nil {
		service.logger.Error("htmxClassifyHandler: failed to classify uploaded image",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.String(http.StatusInternalServerError, "Failed to classify uploaded image")
	}

	// Return the classification summary plus an out-of-band swap refreshing
	// the result list.
	summary := fmt.Sprintf(`<div id="classify-result"><p>Classified %s: %d object(s) found.</p></div>`,
		html.EscapeString(file.Filename), len(record.Detections))

	listHTML, listErr := service.buildResultListHTML()
	if listErr != nil {
		service.logger.Error("htmxClassifyHandler: failed to list results for OOB update",
			"status", http.StatusInternalServerError, "error", listErr)
		return ctx.HTML(http.StatusOK, summary)
	}
	listOOB := fmt.Sprintf(`<div id="result-list" hx-swap-oob="true">%s</div>`, listHTML)
	return ctx.HTML(http.StatusOK, summary+listOOB)
}

func (service *FrontendService) htmxListResultsHandler(ctx echo.Context) error {
	listHTML, err := service.buildResultListHTML()
	if err != nil {
		service.logger.Error("htmxListResultsHandler: failed to list results",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list results")
	}

	service.setNoCache(ctx)
	return ctx.HTML(http.StatusOK, listHTML)
}

func (service *FrontendService) htmxThumbnailHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return ctx.String(http.StatusBadRequest, "Missing result ID")
	}

	image, err := service.coreService.Image(id)
	if err != nil || len(image) == 0 {
		service.logger.Warn("htmxThumbnailHandler: image not available",
			"status", http.StatusNotFound, "result_id", id, "error", err)
		return ctx.String(http.StatusNotFound, "Image not available")
	}
	thumbnail, err := service.toThumbnail(image)
	if err != nil {
		service.logger.Warn("htmxThumbnailHandler: thumbnail not available",
			"status", http.StatusNotFound, "result_id", id, "error", err)
		return ctx.String(http.StatusNotFound, "Thumbnail not available")
	}

	service.setNoCache(ctx)
	return ctx.Blob(http.StatusOK, mimePNG, thumbnail)
}

func (service *FrontendService) htmxDeleteResultHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return ctx.String(http.StatusBadRequest, "Missing result ID")
	}

	if err := service.coreService.Delete(id); err != nil {
		service.logger.Error("htmxDeleteResultHandler: failed to delete result",
			"status", http.StatusInternalServerError, "result_id", id, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to delete result")
	}

	listHTML, err := service.buildResultListHTML()
	if err != nil {
		service.logger.Error("htmxDeleteResultHandler: failed to list results after delete",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list results")
	}

	service.setNoCache(ctx)
	return ctx.HTML(http.StatusOK, listHTML)
}

// toThumbnail scales a stored PNG down to the thumbnail width, preserving
// aspect ratio.
func (service *FrontendService) toThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored image: %w", err)
	}
	if img.Bounds().Dx() > thumbnailWidth {
		img = imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err = png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func (service *FrontendService) buildResultListHTML() (string, error) {
	records, err := service.coreService.Records()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if len(records) == 0 {
		b.WriteString(`<p>No results yet.</p>`)
		return b.String(), nil
	}

	ts := fmt.Sprintf("%d", time.Now().UnixNano())
	b.WriteString(`<div class="vertical-list" id="result-sort-list">`)
	for _, record := range records {
		b.WriteString(fmt.Sprintf(`<div class="vertical-item" data-id="%s"><article>
	<img src="/htmx/result/thumb/%s?ts=%s" alt="Thumbnail %s" style="max-width:100%%;height:auto">
	<div class="detections">%s</div>
	<footer style="display:flex;gap:0.5rem;align-items:center">
		<small>%s · %s</small>
		<button hx-delete="/htmx/result/%s" hx-target="#result-list" hx-swap="innerHTML" class="secondary">Delete</button>
	</footer>
</article></div>`,
			record.ID, record.ID, ts, record.ID,
			service.buildDetectionsHTML(record),
			html.EscapeString(record.Name),
			record.CreatedAt.Format("2006-01-02 15:04"),
			record.ID))
	}
	b.WriteString(`</div>`)
	return b.String(), nil
}

func (service *FrontendService) buildDetectionsHTML(record *store.Record) string {
	if len(record.Detections) == 0 {
		return `<p>No objects detected.</p>`
	}

	var b strings.Builder
	b.WriteString(`<ul>`)
	for _, detection := range record.Detections {
		b.WriteString(fmt.Sprintf(
			`<li><span class="color-chip" style="background:%s"></span> %s, score %.2f, box (%.0f,%.0f)-(%.0f,%.0f), %s</li>`,
			html.EscapeString(detection.Hex),
			html.EscapeString(service.coreService.LabelName(detection.Label)),
			detection.Score,
			detection.Box.X1, detection.Box.Y1, detection.Box.X2, detection.Box.Y2,
			html.EscapeString(detection.Color)))
	}
	b.WriteString(`</ul>`)
	return b.String()
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		service.logger.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

// Package api exposes the JSON classification API: one endpoint accepting a
// raw RGBA buffer with its dimensions, and an info endpoint reporting the
// build and model in use.
package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/goinfer/internal/core"
	"github.com/jo-hoe/goinfer/internal/detect"
	"github.com/jo-hoe/goinfer/internal/runtime"
	"github.com/jo-hoe/goinfer/internal/telemetry"
)

type APIService struct {
	coreService *core.CoreService
	logger      *slog.Logger
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
		logger:      telemetry.Logger("api"),
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET("/api/v1/info", s.infoHandler)
	e.POST("/api/v1/classify", s.classifyHandler)
}

type infoResponse struct {
	Build string `json:"build"`
	Model string `json:"model"`
}

func (s *APIService) infoHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, infoResponse{
		Build: runtime.Info(),
		Model: s.coreService.ModelName(),
	})
}

// classifyRequest carries one RGBA pixel buffer. Pixels travel base64
// encoded via the standard []byte JSON encoding and must hold exactly
// width*height*4 bytes.
type classifyRequest struct {
	Width  int    `json:"width" validate:"required,gt=0"`
	Height int    `json:"height" validate:"required,gt=0"`
	Pixels []byte `json:"pixels" validate:"required"`
}

type classifyResponse struct {
	Detections []classifiedObject `json:"detections"`
}

type classifiedObject struct {
	detect.Detection
	LabelName string `json:"labelName"`
}

func (s *APIService) classifyHandler(ctx echo.Context) error {
	var request classifyRequest
	if err := ctx.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := ctx.Validate(&request); err != nil {
		return err
	}

	detections, err := s.coreService.Classify(ctx.Request().Context(), request.Pixels, request.Width, request.Height)
	if err != nil {
		s.logger.Error("classifyHandler: classification failed",
			"width", request.Width, "height", request.Height, "error", err)
		return echo.NewHTTPError(statusFromCode(runtime.CodeOf(err)), err.Error())
	}

	response := classifyResponse{Detections: make([]classifiedObject, 0, len(detections))}
	for _, detection := range detections {
		response.Detections = append(response.Detections, classifiedObject{
			Detection: detection,
			LabelName: s.coreService.LabelName(detection.Label),
		})
	}
	return ctx.JSON(http.StatusOK, response)
}

// statusFromCode maps runtime error classifications to HTTP status codes.
func statusFromCode(code runtime.ErrorCode) int {
	switch code {
	case runtime.CodeInvalidArgument:
		return http.StatusBadRequest
	case runtime.CodeNoSuchFile, runtime.CodeInvalidModel:
		return http.StatusNotFound
	case runtime.CodeNotImplemented:
		return http.StatusNotImplemented
	case runtime.CodeBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

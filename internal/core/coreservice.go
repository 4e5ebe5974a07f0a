package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jo-hoe/goinfer/internal/backend/inprocess"
	"github.com/jo-hoe/goinfer/internal/backend/remote"
	"github.com/jo-hoe/goinfer/internal/cache"
	"github.com/jo-hoe/goinfer/internal/detect"
	"github.com/jo-hoe/goinfer/internal/runtime"
	"github.com/jo-hoe/goinfer/internal/runtime/session"
	"github.com/jo-hoe/goinfer/internal/store"
	"github.com/jo-hoe/goinfer/internal/telemetry"
)

// CoreService wires the inference session, detector, store and cache
// together behind the operations the frontend and CLI need.
type CoreService struct {
	config   *ServiceConfig
	store    store.Service
	cache    cache.Cache
	session  runtime.Session
	detector *detect.Detector
	labels   map[int64]string
}

// NewCoreService builds the service from configuration. A configured backend
// override is installed before any session use; afterwards the model is
// loaded and all dependencies are opened.
func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	if err := installBackend(config.Backend); err != nil {
		return nil, err
	}

	sess, err := session.NewBuilder().CommitFromFile(ctx, config.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open model %s: %w", config.ModelPath, err)
	}

	detector, err := detect.New(sess, detect.Options{
		ScoreThreshold: config.Detector.ScoreThreshold,
		IoUThreshold:   config.Detector.IoUThreshold,
		MaxResults:     config.Detector.MaxResults,
		MaxSide:        config.Detector.MaxSide,
	})
	if err != nil {
		_ = sess.Close()
		return nil, err
	}

	storeService, err := store.New(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}

	resultCache := cache.NewDisabled()
	if config.Cache.Address != "" {
		resultCache = cache.NewRedis(config.Cache.Address, config.Cache.TTL)
		telemetry.Logger("core").Info("result cache enabled", "address", config.Cache.Address, "ttl", config.Cache.TTL)
	}

	labels := make(map[int64]string, len(config.Labels))
	for _, label := range config.Labels {
		labels[label.ID] = label.Name
	}

	return &CoreService{
		config:   config,
		store:    storeService,
		cache:    resultCache,
		session:  sess,
		detector: detector,
		labels:   labels,
	}, nil
}

// installBackend applies the configured backend override via runtime.Use.
// This must run before the first session is opened. Requesting the backend
// that is already active is a no-op, so the service can be constructed more
// than once per process with the same configuration.
func installBackend(name string) error {
	switch name {
	case "":
		return nil
	case "remote":
		return use(remote.New())
	case "inprocess":
		return use(inprocess.New())
	default:
		return fmt.Errorf("unknown backend %q", name)
	}
}

func use(backend runtime.Backend) error {
	err := runtime.Use(backend)
	if errors.Is(err, runtime.ErrEnvironmentInitialized) {
		env, activeErr := runtime.Active()
		if activeErr == nil && env.Backend().Name() == backend.Name() {
			return nil
		}
	}
	return err
}

// ClassifyAndStore normalizes an uploaded image to PNG, runs detection
// (served from cache when the same content was seen before) and persists the
// result.
func (service *CoreService) ClassifyAndStore(ctx context.Context, name string, data []byte) (*store.Record, error) {
	normalized, err := detect.NormalizePNG(data)
	if err != nil {
		return nil, err
	}

	key := cache.Key(normalized)
	detections, hit, err := service.cache.Get(ctx, key)
	if err != nil {
		// Cache trouble must not fail the request.
		telemetry.Logger("core").Warn("cache lookup failed", "error", err)
		hit = false
	}
	if !hit {
		detections, err = service.detector.DetectBytes(ctx, normalized)
		if err != nil {
			return nil, err
		}
		if cacheErr := service.cache.Set(ctx, key, detections); cacheErr != nil {
			telemetry.Logger("core").Warn("cache store failed", "error", cacheErr)
		}
	}

	id, err := service.store.Create(name, normalized, detections)
	if err != nil {
		return nil, fmt.Errorf("failed to persist result: %w", err)
	}

	telemetry.Logger("core").Info("image classified",
		"id", id,
		"name", name,
		"detections", len(detections),
		"cache_hit", hit)
	return service.store.Get(id)
}

// Classify runs one detection pass over a raw RGBA buffer. This is the
// browser demo entry point; the buffer length must be width*height*4.
func (service *CoreService) Classify(ctx context.Context, pix []byte, width, height int) ([]detect.Detection, error) {
	return service.detector.DetectRGBA(ctx, pix, width, height)
}

// Records lists all stored results, newest first.
func (service *CoreService) Records() ([]*store.Record, error) {
	return service.store.List()
}

// Image returns a stored image payload by id.
func (service *CoreService) Image(id string) ([]byte, error) {
	return service.store.ImageByID(id)
}

// Delete removes a stored result.
func (service *CoreService) Delete(id string) error {
	return service.store.Delete(id)
}

// LabelName resolves a numeric label to its configured display name, falling
// back to the number itself.
func (service *CoreService) LabelName(id int64) string {
	if name, ok := service.labels[id]; ok {
		return name
	}
	return strconv.FormatInt(id, 10)
}

// ModelName returns the loaded model's name.
func (service *CoreService) ModelName() string {
	return service.session.Metadata().Name
}

// Close releases the session, store and cache.
func (service *CoreService) Close() error {
	var firstErr error
	for _, closer := range []func() error{service.session.Close, service.store.Close, service.cache.Close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

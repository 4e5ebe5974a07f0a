// Package remote implements the default networked backend. Sessions delegate
// execution to an inference endpoint over HTTP with JSON-encoded tensors.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jo-hoe/goinfer/internal/runtime"
	"github.com/jo-hoe/goinfer/internal/runtime/metadata"
	"github.com/jo-hoe/goinfer/internal/runtime/value"
	"github.com/jo-hoe/goinfer/internal/telemetry"
)

// Config holds the connection settings for the remote inference endpoint.
type Config struct {
	// Endpoint is the base URL of the inference service.
	Endpoint string `env:"GOINFER_REMOTE_ENDPOINT" envDefault:"http://localhost:8080"`

	// Timeout bounds a single predict call end to end.
	Timeout time.Duration `env:"GOINFER_REMOTE_TIMEOUT" envDefault:"30s"`
}

// Backend executes sessions against a remote inference endpoint.
type Backend struct {
	config Config
	client *http.Client

	// configErr is surfaced from Available so that broken environment
	// configuration fails at initialization, not on first Run.
	configErr error
}

// New creates a backend configured from the environment.
func New() *Backend {
	var config Config
	if err := env.Parse(&config); err != nil {
		return &Backend{configErr: fmt.Errorf("failed to parse remote backend environment: %w", err)}
	}
	return NewWithConfig(config)
}

// NewWithConfig creates a backend with explicit settings.
func NewWithConfig(config Config) *Backend {
	backend := &Backend{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
	if parsed, err := url.Parse(config.Endpoint); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		backend.configErr = fmt.Errorf("remote endpoint %q is not a valid URL", config.Endpoint)
	}
	return backend
}

func (b *Backend) Name() string {
	return "remote"
}

func (b *Backend) Available() error {
	return b.configErr
}

// OpenSession parses the model descriptor locally; the remote service is only
// contacted on Run.
func (b *Backend) OpenSession(_ context.Context, src runtime.ModelSource, opts runtime.SessionOptions) (runtime.Session, error) {
	if err := b.configErr; err != nil {
		return nil, runtime.Errorf(runtime.CodeBackendUnavailable, "remote backend is not configured: %w", err)
	}
	descriptor, err := runtime.LoadDescriptor(src)
	if err != nil {
		return nil, err
	}
	return &session{
		backend:    b,
		descriptor: descriptor,
		options:    encodeOptions(opts),
	}, nil
}

type session struct {
	backend    *Backend
	descriptor *runtime.ModelDescriptor
	options    optionsPayload
}

func (s *session) Run(ctx context.Context, inputs map[string]*value.Tensor) (map[string]*value.Tensor, error) {
	if err := s.descriptor.ValidateInputs(inputs); err != nil {
		return nil, err
	}

	request := predictRequest{
		Model:   s.descriptor.Metadata.Name,
		Options: s.options,
		Inputs:  make(map[string]tensorPayload, len(inputs)),
	}
	for name, tensor := range inputs {
		payload, err := encodeTensor(tensor)
		if err != nil {
			return nil, err
		}
		request.Inputs[name] = payload
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, runtime.Errorf(runtime.CodeFail, "failed to encode predict request: %w", err)
	}

	predictURL := s.backend.config.Endpoint + "/v1/models/" + url.PathEscape(s.descriptor.Metadata.Name) + ":predict"
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, predictURL, bytes.NewReader(body))
	if err != nil {
		return nil, runtime.Errorf(runtime.CodeFail, "failed to build predict request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResponse, err := s.backend.client.Do(httpRequest)
	if err != nil {
		return nil, runtime.Errorf(runtime.CodeEngineError, "predict call to %s failed: %w", s.backend.config.Endpoint, err)
	}
	defer func() {
		_ = httpResponse.Body.Close()
	}()

	responseBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, runtime.Errorf(runtime.CodeEngineError, "failed to read predict response: %w", err)
	}

	var response predictResponse
	if err = json.Unmarshal(responseBody, &response); err != nil && httpResponse.StatusCode == http.StatusOK {
		return nil, runtime.Errorf(runtime.CodeEngineError, "predict response is not valid JSON: %w", err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		return nil, statusError(httpResponse.StatusCode, response.Error)
	}

	outputs := make(map[string]*value.Tensor, len(response.Outputs))
	for name, payload := range response.Outputs {
		tensor, decodeErr := decodeTensor(payload)
		if decodeErr != nil {
			return nil, runtime.Errorf(runtime.CodeEngineError, "output %q: %w", name, decodeErr)
		}
		outputs[name] = tensor
	}

	telemetry.Logger("backend.remote").Debug("predict call completed",
		"model", s.descriptor.Metadata.Name,
		"duration", time.Since(start),
		"outputs", len(outputs))
	return outputs, nil
}

// statusError maps HTTP status codes from the inference service onto runtime
// error codes.
func statusError(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusBadRequest:
		return runtime.Errorf(runtime.CodeInvalidArgument, "inference service rejected the request: %s", message)
	case http.StatusNotFound:
		return runtime.Errorf(runtime.CodeNoSuchFile, "inference service does not know the model: %s", message)
	case http.StatusNotImplemented:
		return runtime.Errorf(runtime.CodeNotImplemented, "inference service does not support the operation: %s", message)
	default:
		return runtime.Errorf(runtime.CodeEngineError, "inference service returned status %d: %s", status, message)
	}
}

func (s *session) Descriptor() *runtime.ModelDescriptor {
	return s.descriptor
}

func (s *session) Metadata() *metadata.Model {
	return &s.descriptor.Metadata
}

func (s *session) Close() error {
	return nil
}

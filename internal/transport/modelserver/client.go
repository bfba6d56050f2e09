// Package modelserver is a client for a TensorFlow-Serving compatible REST model server.
// The served model is expected to take a batch of HxWx3 tensors in [-1, 1] and
// return one fixed-length vector per instance.
package modelserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pictura/internal/domain"
	"github.com/kailas-cloud/pictura/internal/domain/feature"
	"github.com/kailas-cloud/pictura/internal/extractor"
	"github.com/kailas-cloud/pictura/internal/version"
)

const (
	stateAvailable = "AVAILABLE"
	maxErrorBody   = 4 << 10
)

// Config holds the model server settings.
type Config struct {
	URL              string
	Model            string
	InputSize        int
	Dimensions       int   // 0 disables the dimension check
	MaxPixels        int64 // 0 uses extractor.DefaultMaxPixels
	RequestTimeout   time.Duration
	ReadinessTimeout time.Duration
	PollInterval     time.Duration
	HTTPClient       *http.Client
	Logger           *zap.Logger
}

// Client extracts feature vectors through the model server.
type Client struct {
	baseURL          string
	model            string
	inputSize        int
	dimensions       int
	maxPixels        int64
	requestTimeout   time.Duration
	readinessTimeout time.Duration
	pollInterval     time.Duration
	http             *http.Client
	logger           *zap.Logger
}

// New validates cfg and creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("model server url is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid model server url: %w", err)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("input size must be positive")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.URL, "/"),
		model:            cfg.Model,
		inputSize:        cfg.InputSize,
		dimensions:       cfg.Dimensions,
		maxPixels:        cfg.MaxPixels,
		requestTimeout:   cfg.RequestTimeout,
		readinessTimeout: cfg.ReadinessTimeout,
		pollInterval:     cfg.PollInterval,
		http:             cfg.HTTPClient,
		logger:           cfg.Logger,
	}, nil
}

type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
		Status  struct {
			ErrorCode    string `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
	} `json:"model_version_status"`
}

type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error"`
}

// Available reports whether at least one model version is being served.
func (c *Client) Available(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(""), nil)
	if err != nil {
		return false, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("model status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("model status: %s", readError(resp))
	}

	var status modelStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, fmt.Errorf("decode model status: %w", err)
	}
	for _, v := range status.ModelVersionStatus {
		if v.State == stateAvailable {
			return true, nil
		}
	}
	return false, nil
}

// Load polls the model status until a version is AVAILABLE or the readiness timeout expires.
// It implements extractor.Loader.
func (c *Client) Load(ctx context.Context) error {
	if c.readinessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.readinessTimeout)
		defer cancel()
	}

	var lastErr error
	attempts := 0
	op := func() error {
		attempts++
		ok, err := c.Available(ctx)
		if err != nil {
			lastErr = err
			return err
		}
		if !ok {
			lastErr = fmt.Errorf("model %q has no available version", c.model)
			return lastErr
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.logger.Debug("Model not ready yet",
			zap.String("model", c.model),
			zap.Int("attempt", attempts),
			zap.Duration("retry_in", next),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if lastErr != nil && !errors.Is(err, lastErr) {
			return fmt.Errorf("model %q not ready after %d attempts: %w (last error: %v)", c.model, attempts, err, lastErr)
		}
		return fmt.Errorf("model %q not ready after %d attempts: %w", c.model, attempts, err)
	}
	return nil
}

// Extract preprocesses the image and runs one prediction.
func (c *Client) Extract(ctx context.Context, image []byte) (feature.Vector, error) {
	img, err := extractor.Decode(image, c.maxPixels)
	if err != nil {
		return nil, err
	}
	tensor := extractor.Tensor(extractor.Resize(img, c.inputSize))

	body, err := json.Marshal(predictRequest{Instances: [][][][]float32{tensor}})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL(":predict"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: predict: %w", domain.ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: predict: %s", domain.ErrExtraction, readError(resp))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode predictions: %w", domain.ErrExtraction, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: predict: %s", domain.ErrExtraction, out.Error)
	}
	if len(out.Predictions) == 0 || len(out.Predictions[0]) == 0 {
		return nil, fmt.Errorf("%w: empty predictions", domain.ErrExtraction)
	}

	vec := feature.Vector(out.Predictions[0])
	if c.dimensions > 0 && vec.Dim() != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", domain.ErrVectorDimMismatch, vec.Dim(), c.dimensions)
	}
	return vec, nil
}

func (c *Client) modelURL(suffix string) string {
	return c.baseURL + "/v1/models/" + url.PathEscape(c.model) + suffix
}

// readError extracts a readable error from a non-200 response.
func readError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, parsed.Error)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

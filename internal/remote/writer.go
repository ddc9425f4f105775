// Package remote performs the actual network writes for queue items: photo
// uploads to pre-signed URLs and JSON action writes against the dispatch
// backend. Every failure is tagged with the remote marker so the engine's
// retry accounting can surface it uniformly.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/services"
)

// Writer issues HTTP writes to the dispatch backend.
type Writer struct {
	baseURL     string
	authToken   string
	contentType string
	client      *http.Client
	logger      *slog.Logger
}

// New builds a writer from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Writer {
	return &Writer{
		baseURL:     strings.TrimRight(cfg.Backend.BaseURL, "/"),
		authToken:   cfg.Backend.AuthToken,
		contentType: cfg.Backend.UploadContentType,
		client:      &http.Client{Timeout: time.Duration(cfg.Backend.RequestTimeout) * time.Second},
		logger:      logging.NewComponentLogger(logger, "remote"),
	}
}

// UploadPhoto PUTs transcoded photo bytes to a pre-signed destination URL.
// Pre-signed URLs carry their own credentials so no bearer token is sent.
func (w *Writer) UploadPhoto(ctx context.Context, destination string, data []byte) error {
	if strings.TrimSpace(destination) == "" {
		return services.Wrap(services.ErrValidation, "remote", "upload", "missing destination URL", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, destination, bytes.NewReader(data))
	if err != nil {
		return services.Wrap(services.ErrValidation, "remote", "upload", "invalid destination URL", err)
	}
	req.Header.Set("Content-Type", w.contentType)
	req.ContentLength = int64(len(data))

	resp, err := w.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrRemote, "remote", "upload", "photo upload failed", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return services.Wrap(services.ErrRemote, "remote", "upload",
			fmt.Sprintf("photo upload rejected with status %d", resp.StatusCode), nil)
	}

	w.logger.Debug("photo uploaded",
		logging.Int("bytes", len(data)),
		logging.Int("status", resp.StatusCode),
	)
	return nil
}

// SetDeliveryStatus records a delivery-status change for an order.
func (w *Writer) SetDeliveryStatus(ctx context.Context, payload json.RawMessage) error {
	return w.post(ctx, "/driver/delivery-status", payload)
}

// StartRoute marks a route as started.
func (w *Writer) StartRoute(ctx context.Context, payload json.RawMessage) error {
	return w.post(ctx, "/driver/route/start", payload)
}

// StopRoute marks a route as finished.
func (w *Writer) StopRoute(ctx context.Context, payload json.RawMessage) error {
	return w.post(ctx, "/driver/route/stop", payload)
}

// SetLicense records the vehicle license plate for the active route.
func (w *Writer) SetLicense(ctx context.Context, payload json.RawMessage) error {
	return w.post(ctx, "/driver/license", payload)
}

// RecordDeliveryEvidence registers an evidence record after its photo upload.
func (w *Writer) RecordDeliveryEvidence(ctx context.Context, payload json.RawMessage) error {
	return w.post(ctx, "/driver/evidence/delivery", payload)
}

// RecordNonDeliveryEvidence registers a non-delivery evidence record.
func (w *Writer) RecordNonDeliveryEvidence(ctx context.Context, payload json.RawMessage) error {
	return w.post(ctx, "/driver/evidence/non-delivery", payload)
}

func (w *Writer) post(ctx context.Context, path string, payload json.RawMessage) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	url := w.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "remote", "post", "invalid backend URL", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+w.authToken)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrRemote, "remote", "post", "backend write failed", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return services.Wrap(services.ErrRemote, "remote", "post",
			fmt.Sprintf("backend rejected %s with status %d", path, resp.StatusCode), nil)
	}

	w.logger.Debug("backend write accepted",
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
	)
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

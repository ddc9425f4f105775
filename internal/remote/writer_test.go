package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"courier/internal/remote"
	"courier/internal/services"
	"courier/internal/testsupport"
)

func TestUploadPhotoPutsBytesWithContentType(t *testing.T) {
	var (
		gotMethod      string
		gotContentType string
		gotBody        []byte
		gotAuth        string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	writer := remote.New(cfg, nil)

	data := []byte("jpeg-bytes")
	if err := writer.UploadPhoto(context.Background(), server.URL+"/signed/photo.jpg", data); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %s", gotMethod)
	}
	if gotContentType != cfg.Backend.UploadContentType {
		t.Fatalf("expected content type %q, got %q", cfg.Backend.UploadContentType, gotContentType)
	}
	if gotAuth != "" {
		t.Fatalf("pre-signed uploads must not carry a bearer token, got %q", gotAuth)
	}
	if string(gotBody) != "jpeg-bytes" {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestUploadPhotoRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	writer := remote.New(cfg, nil)

	err := writer.UploadPhoto(context.Background(), server.URL+"/signed/photo.jpg", []byte("x"))
	if !errors.Is(err, services.ErrRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestUploadPhotoRejectsEmptyDestination(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writer := remote.New(cfg, nil)

	err := writer.UploadPhoto(context.Background(), "  ", []byte("x"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBackendWritesPostJSONWithAuth(t *testing.T) {
	type recorded struct {
		path string
		auth string
		body string
	}
	var calls []recorded
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: string(body)})
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(server.URL))
	cfg.Backend.AuthToken = "secret-token"
	writer := remote.New(cfg, nil)

	ctx := context.Background()
	payload := json.RawMessage(`{"status":"delivered"}`)
	ops := []struct {
		name string
		call func() error
		path string
	}{
		{"delivery status", func() error { return writer.SetDeliveryStatus(ctx, payload) }, "/driver/delivery-status"},
		{"route start", func() error { return writer.StartRoute(ctx, payload) }, "/driver/route/start"},
		{"route stop", func() error { return writer.StopRoute(ctx, payload) }, "/driver/route/stop"},
		{"license", func() error { return writer.SetLicense(ctx, payload) }, "/driver/license"},
		{"delivery evidence", func() error { return writer.RecordDeliveryEvidence(ctx, payload) }, "/driver/evidence/delivery"},
		{"non-delivery evidence", func() error { return writer.RecordNonDeliveryEvidence(ctx, payload) }, "/driver/evidence/non-delivery"},
	}
	for _, op := range ops {
		if err := op.call(); err != nil {
			t.Fatalf("%s: %v", op.name, err)
		}
	}

	if len(calls) != len(ops) {
		t.Fatalf("expected %d calls, got %d", len(ops), len(calls))
	}
	for i, op := range ops {
		if calls[i].path != op.path {
			t.Fatalf("%s: expected path %q, got %q", op.name, op.path, calls[i].path)
		}
		if calls[i].auth != "Bearer secret-token" {
			t.Fatalf("%s: expected bearer auth, got %q", op.name, calls[i].auth)
		}
		if calls[i].body != `{"status":"delivered"}` {
			t.Fatalf("%s: unexpected body %q", op.name, calls[i].body)
		}
	}
}

func TestBackendWriteSurfacesRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(server.URL))
	writer := remote.New(cfg, nil)

	err := writer.SetDeliveryStatus(context.Background(), nil)
	if !errors.Is(err, services.ErrRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestBackendWriteEmptyPayloadDefaultsToObject(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(server.URL))
	writer := remote.New(cfg, nil)

	if err := writer.StartRoute(context.Background(), nil); err != nil {
		t.Fatalf("start route: %v", err)
	}
	if gotBody != "{}" {
		t.Fatalf("expected empty object body, got %q", gotBody)
	}
}

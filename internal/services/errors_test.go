package services_test

import (
	"errors"
	"strings"
	"testing"

	"courier/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRemote, "remote", "put evidence", "upload rejected", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrRemote) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"remote", "put evidence", "upload rejected"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "engine", "process", "failed", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected nil marker to default to transient, got %v", err)
	}
}

func TestIsPermanentClassification(t *testing.T) {
	validation := services.Wrap(services.ErrValidation, "transcode", "decode", "corrupt image", nil)
	if !services.IsPermanent(validation) {
		t.Fatal("validation errors should be permanent")
	}
	transient := services.Wrap(services.ErrTransient, "remote", "put", "timeout", nil)
	if services.IsPermanent(transient) {
		t.Fatal("transient errors should not be permanent")
	}
	if services.IsPermanent(nil) {
		t.Fatal("nil should not be permanent")
	}
}

func TestMessageStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "transcode", "decode", "zero dimensions", nil)
	got := services.Message(err)
	if strings.Contains(got, "validation error") {
		t.Fatalf("marker prefix should be stripped, got %q", got)
	}
	if !strings.Contains(got, "zero dimensions") {
		t.Fatalf("detail missing from %q", got)
	}
	if services.Message(nil) != "" {
		t.Fatal("nil error should yield empty message")
	}
}

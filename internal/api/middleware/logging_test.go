package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerIncludesDomainFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat?classId=course-1&uid=u1", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{
		`"path":"/api/chat"`,
		`"status":201`,
		`"class_id":"course-1"`,
		`"uid":"u1"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log entry, got %s", want, out)
		}
	}
}

func TestLoggerOmitsAbsentIdentityFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, `"uid"`) || strings.Contains(out, `"class_id"`) {
		t.Fatalf("expected no identity fields, got %s", out)
	}
}

func TestLoggerSocketSessionEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/socket?uid=u1", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, "socket session closed") || !strings.Contains(out, `"uid":"u1"`) {
		t.Fatalf("expected socket session entry with uid, got %s", out)
	}
}

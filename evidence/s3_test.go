package evidence

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestS3Storage_URL(t *testing.T) {
	s, err := NewS3Storage(S3Config{
		Endpoint:      "storage.example.com",
		Bucket:        "evidence",
		UseSSL:        true,
		PublicBaseURL: "https://cdn.example.com/",
	})
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	got := s.URL("user-1/1700000000000-0-receipt #1.pdf")
	want := "https://cdn.example.com/evidence/user-1/1700000000000-0-receipt%20%231.pdf"
	if got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestS3Storage_URLDefaultsToEndpoint(t *testing.T) {
	s, err := NewS3Storage(S3Config{Endpoint: "localhost:9000", Bucket: "evidence"})
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	if got := s.URL("a/b.png"); got != "http://localhost:9000/evidence/a/b.png" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestNewS3Storage_Validation(t *testing.T) {
	if _, err := NewS3Storage(S3Config{Bucket: "b"}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
	if _, err := NewS3Storage(S3Config{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}

func TestS3Storage_Put(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotBody   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s, err := NewS3Storage(S3Config{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "evidence",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	url, err := s.Put(context.Background(), "user-1/1-0-a.txt", strings.NewReader("hello"), 5, "text/plain")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/evidence/user-1/1-0-a.txt" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
	if !strings.Contains(gotBody, "hello") {
		t.Fatalf("expected object body to be uploaded, got %q", gotBody)
	}
	if url != server.URL+"/evidence/user-1/1-0-a.txt" {
		t.Fatalf("unexpected url %q", url)
	}
}

package letter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"disputeai/dispute"
)

func sampleDetail() dispute.Detail {
	order := "112-7788"
	contact := "Support promised a refund that never came."
	return dispute.Detail{
		Record: dispute.Record{
			ID:                 "6f1d2c3b-aaaa-bbbb-cccc-000000000001",
			PlatformName:       "Amazon",
			PurchaseDate:       time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			Amount:             "49.99",
			Currency:           "USD",
			OrderNumber:        &order,
			ProblemType:        "item_not_received",
			Description:        "The package <never> arrived.",
			ContactedPlatform:  true,
			ContactDescription: &contact,
		},
	}
}

func TestRender_WithoutProof(t *testing.T) {
	r := NewRenderer().WithClock(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) })

	html, err := r.Render(sampleDetail(), "Dana Buyer")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"June 1, 2025",
		"May 1, 2025",
		"49.99 USD",
		"Item not received",
		"112-7788",
		"DSP-6F1D2C3BAA",
		"Support promised a refund",
		"No proof was uploaded",
		"Dana Buyer",
		"The package &lt;never&gt; arrived.",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("letter missing %q", want)
		}
	}
}

func TestRender_ListsEvidenceInOrder(t *testing.T) {
	d := sampleDetail()
	d.Bundle = &dispute.ProofBundle{
		PrimaryURL:     "https://cdn.example.com/a.png",
		PrimaryName:    "a.png",
		SecondaryURLs:  []string{"https://cdn.example.com/b.png"},
		SecondaryNames: []string{"b.png"},
		EvidenceType:   "screenshot",
	}

	html, err := NewRenderer().Render(d, "Dana Buyer")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	a, b := strings.Index(html, "a.png"), strings.Index(html, "b.png")
	if a < 0 || b < 0 || a > b {
		t.Fatalf("expected a.png before b.png in:\n%s", html)
	}
	if strings.Contains(html, "No proof was uploaded") {
		t.Fatal("warning must not appear when proof exists")
	}
}

func TestClient_Convert(t *testing.T) {
	var got convertRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "key-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer srv.Close()

	pdf, err := NewClient(srv.URL, "key-1", time.Second).Convert(context.Background(), "<p>hi</p>")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if string(pdf) != "%PDF-1.7 fake" || got.Source != "<p>hi</p>" || got.Format != "A4" {
		t.Fatalf("unexpected exchange: pdf=%q req=%+v", pdf, got)
	}
}

func TestClient_ConvertRejectsOversizedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	c.maxBytes = 16
	if _, err := c.Convert(context.Background(), "<p>hi</p>"); !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed for oversized document, got %v", err)
	}

	c.maxBytes = 64
	pdf, err := c.Convert(context.Background(), "<p>hi</p>")
	if err != nil || len(pdf) != 64 {
		t.Fatalf("document at the limit should pass, got %d bytes, %v", len(pdf), err)
	}
}

func TestClient_ConvertFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Convert(context.Background(), "<p>hi</p>")
	if !errors.Is(err, ErrConversionFailed) || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected ErrConversionFailed with body, got %v", err)
	}
}

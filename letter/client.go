package letter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrConversionFailed signals a non-2xx, empty or oversized answer from the
// conversion service.
var ErrConversionFailed = errors.New("letter: conversion failed")

const (
	maxErrorBody    = 4 << 10
	maxDocumentBody = 32 << 20
)

// Client posts HTML to a document-conversion service and returns the PDF.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	maxBytes   int64
}

// NewClient builds a client. A non-positive timeout falls back to 30s.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxDocumentBody,
	}
}

type convertRequest struct {
	Source    string `json:"source"`
	Format    string `json:"format"`
	Landscape bool   `json:"landscape"`
}

// Convert returns PDF bytes for the given HTML document.
func (c *Client) Convert(ctx context.Context, html string) ([]byte, error) {
	body, err := json.Marshal(convertRequest{Source: html, Format: "A4"})
	if err != nil {
		return nil, fmt.Errorf("letter: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("letter: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("letter: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrConversionFailed, resp.StatusCode, bytes.TrimSpace(msg))
	}

	pdf, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("letter: read response: %w", err)
	}
	if int64(len(pdf)) > c.maxBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrConversionFailed, c.maxBytes)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrConversionFailed)
	}
	return pdf, nil
}

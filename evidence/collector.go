// Package evidence stores user-supplied proof files and reports a location
// for each one.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrEmptyFile signals a zero-byte upload.
	ErrEmptyFile = errors.New("evidence: empty file")
	// ErrTooLarge signals a file above the configured size limit.
	ErrTooLarge = errors.New("evidence: file too large")
	// ErrNoLocation signals storage accepted the file without returning a URL.
	ErrNoLocation = errors.New("evidence: storage returned no location")
)

// File is one uploaded blob awaiting storage.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Item is a stored evidence file.
type Item struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Meta is the classification the user attaches to an upload round.
type Meta struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Outcome reports what happened to one input file.
type Outcome struct {
	File string
	Item Item
	Err  error
}

// OK reports whether the file was stored.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Storage persists a blob under path and returns its public location.
type Storage interface {
	Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) (string, error)
}

// Collector uploads files one at a time, in order.
type Collector struct {
	storage  Storage
	maxBytes int64
	now      func() time.Time
}

// NewCollector builds a collector. maxBytes <= 0 disables the size check.
func NewCollector(storage Storage, maxBytes int64) *Collector {
	return &Collector{
		storage:  storage,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// WithClock overrides the time used in object paths.
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Collect stores every file under owner's prefix. Each file is awaited
// before the next one starts so outcomes match input order. A failed file
// does not stop the batch.
func (c *Collector) Collect(ctx context.Context, owner string, files []File) []Outcome {
	outcomes := make([]Outcome, 0, len(files))
	for i, f := range files {
		out := Outcome{File: f.Name}
		switch {
		case f.Size == 0:
			out.Err = ErrEmptyFile
		case c.maxBytes > 0 && f.Size > c.maxBytes:
			out.Err = fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, f.Size, c.maxBytes)
		default:
			path := ObjectPath(owner, f.Name, c.now(), i)
			url, err := c.storage.Put(ctx, path, f.Body, f.Size, contentType(f))
			switch {
			case err != nil:
				out.Err = fmt.Errorf("evidence: store %s: %w", f.Name, err)
			case url == "":
				out.Err = ErrNoLocation
			default:
				out.Item = Item{Name: f.Name, URL: url}
			}
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// Succeeded returns the stored items in processing order.
func Succeeded(outcomes []Outcome) []Item {
	items := make([]Item, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			items = append(items, o.Item)
		}
	}
	return items
}

// ObjectPath builds a timestamp-prefixed object key. seq disambiguates files
// stored within the same millisecond.
func ObjectPath(owner, name string, at time.Time, seq int) string {
	if owner == "" {
		owner = "anonymous"
	}
	return fmt.Sprintf("%s/%d-%d-%s", sanitize(owner), at.UnixMilli(), seq, sanitize(name))
}

func sanitize(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func contentType(f File) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	return "application/octet-stream"
}

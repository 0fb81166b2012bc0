package evidence

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeStorage struct {
	failOn map[string]error
	noURL  map[string]bool
	paths  []string
}

func (f *fakeStorage) Put(_ context.Context, path string, body io.Reader, _ int64, _ string) (string, error) {
	name := path[strings.LastIndex(path, "-")+1:]
	if err, ok := f.failOn[name]; ok {
		return "", err
	}
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	f.paths = append(f.paths, path)
	if f.noURL[name] {
		return "", nil
	}
	return "https://cdn.example.com/evidence/" + path, nil
}

func file(name string) File {
	body := "contents of " + name
	return File{Name: name, ContentType: "image/png", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func fixedClock() time.Time {
	return time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
}

func TestCollect_DropsFailedFileKeepsOrder(t *testing.T) {
	storage := &fakeStorage{failOn: map[string]error{"b.png": errors.New("storage unavailable")}}
	c := NewCollector(storage, 0).WithClock(fixedClock)

	outcomes := c.Collect(context.Background(), "user-1", []File{file("a.png"), file("b.png"), file("c.png")})
	if len(outcomes) != 3 {
		t.Fatalf("expected one outcome per file, got %d", len(outcomes))
	}
	if outcomes[1].OK() || outcomes[1].File != "b.png" {
		t.Fatalf("expected b.png to be reported as failed, got %+v", outcomes[1])
	}

	got := Succeeded(outcomes)
	var names []string
	for _, it := range got {
		names = append(names, it.Name)
	}
	if diff := cmp.Diff([]string{"a.png", "c.png"}, names); diff != "" {
		t.Fatalf("succeeded items mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_TwoFilesOneStorageError(t *testing.T) {
	storage := &fakeStorage{failOn: map[string]error{"receipt.pdf": errors.New("503")}}
	c := NewCollector(storage, 0).WithClock(fixedClock)

	items := Succeeded(c.Collect(context.Background(), "user-1", []File{file("receipt.pdf"), file("screenshot.png")}))
	if len(items) != 1 || items[0].Name != "screenshot.png" {
		t.Fatalf("expected exactly screenshot.png to survive, got %+v", items)
	}
}

func TestCollect_RejectsEmptyAndOversized(t *testing.T) {
	storage := &fakeStorage{}
	c := NewCollector(storage, 10).WithClock(fixedClock)

	big := File{Name: "big.bin", Size: 11, Body: strings.NewReader("01234567890")}
	empty := File{Name: "empty.txt", Size: 0, Body: strings.NewReader("")}

	outcomes := c.Collect(context.Background(), "user-1", []File{big, empty})
	if !errors.Is(outcomes[0].Err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", outcomes[0].Err)
	}
	if !errors.Is(outcomes[1].Err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", outcomes[1].Err)
	}
	if len(storage.paths) != 0 {
		t.Errorf("rejected files must not reach storage, got %v", storage.paths)
	}
}

func TestCollect_MissingLocationIsFailure(t *testing.T) {
	storage := &fakeStorage{noURL: map[string]bool{"a.png": true}}
	c := NewCollector(storage, 0).WithClock(fixedClock)

	outcomes := c.Collect(context.Background(), "user-1", []File{file("a.png")})
	if !errors.Is(outcomes[0].Err, ErrNoLocation) {
		t.Fatalf("expected ErrNoLocation, got %v", outcomes[0].Err)
	}
	if len(Succeeded(outcomes)) != 0 {
		t.Fatalf("item without location must be dropped")
	}
}

func TestObjectPath(t *testing.T) {
	at := fixedClock()
	got := ObjectPath("user 1", "../My Receipt (1).pdf", at, 2)
	want := "user_1/1746180000000-2-My_Receipt__1_.pdf"
	if got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
	if ObjectPath("", "", at, 0) != "anonymous/1746180000000-0-file" {
		t.Fatalf("unexpected fallback path: %s", ObjectPath("", "", at, 0))
	}
}

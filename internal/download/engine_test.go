package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func newDestination(t *testing.T) *os.File {
	t.Helper()

	f, err := os.Create(filepath.Join(t.TempDir(), "track.blob"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	return f
}

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestFetch_Success(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 10_000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()

	dst := newDestination(t)

	var samples []Progress
	e := NewEngine(WithChunkSize(1024), WithClock(steppingClock(time.Second)))

	n, err := e.Fetch(context.Background(), srv.URL, dst, "track", func(p Progress) {
		samples = append(samples, p)
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("downloaded = %d, want %d", n, len(payload))
	}

	got, err := os.ReadFile(dst.Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("file content does not match payload")
	}

	if len(samples) == 0 {
		t.Fatal("expected progress samples")
	}

	var last int64
	for _, p := range samples {
		if p.Id != "track" {
			t.Errorf("sample id = %q", p.Id)
		}
		if p.Total != int64(len(payload)) {
			t.Errorf("sample total = %d, want %d", p.Total, len(payload))
		}
		if p.Downloaded < last || p.Percent > 100 {
			t.Errorf("unexpected sample %+v", p)
		}
		last = p.Downloaded
	}

	// closed on success
	if err := dst.Close(); err == nil {
		t.Error("expected destination to be closed already")
	}
}

func TestFetch_UnknownLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 3; i++ {
			w.Write(bytes.Repeat([]byte("x"), 2048))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	dst := newDestination(t)

	var samples []Progress
	e := NewEngine(WithClock(steppingClock(time.Second)))

	n, err := e.Fetch(context.Background(), srv.URL, dst, "x", func(p Progress) {
		samples = append(samples, p)
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != 6144 {
		t.Errorf("downloaded = %d, want 6144", n)
	}

	for _, p := range samples {
		if p.Total != 0 || p.Percent != 0 || p.TimeRemaining != 0 {
			t.Errorf("unknown length sample = %+v", p)
		}
	}
}

func TestFetch_NoSampleBeforeFirstInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64*1024))
	}))
	defer srv.Close()

	calls := 0
	e := NewEngine(WithProgressInterval(time.Hour), WithChunkSize(512))

	if _, err := e.Fetch(context.Background(), srv.URL, newDestination(t), "x", func(Progress) { calls++ }); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls != 0 {
		t.Errorf("progress called %d times, want 0", calls)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dst := newDestination(t)

	_, err := NewEngine().Fetch(context.Background(), srv.URL, dst, "x", nil)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if te.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", te.StatusCode)
	}
	if errors.Is(err, ErrCancelled) {
		t.Error("transport error must not match ErrCancelled")
	}

	if _, statErr := os.Stat(dst.Name()); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("partial file should be removed, stat err = %v", statErr)
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewEngine().Fetch(context.Background(), url, newDestination(t), "x", nil)
	if !IsTransportError(err) {
		t.Errorf("err = %v, want TransportError", err)
	}
}

func TestFetch_ReadErrorMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write(make([]byte, 10))
		w.(http.Flusher).Flush()

		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	dst := newDestination(t)

	n, err := NewEngine().Fetch(context.Background(), srv.URL, dst, "x", nil)
	if !IsTransportError(err) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if errors.Is(err, ErrCancelled) {
		t.Error("a broken body must not be reported as cancelled")
	}
	if n != 10 {
		t.Errorf("downloaded = %d, want 10", n)
	}

	if _, statErr := os.Stat(dst.Name()); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("partial file should be removed, stat err = %v", statErr)
	}
}

func TestFetch_CancelRemovesPartialFile(t *testing.T) {
	firstChunkSent := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		w.Write(make([]byte, 1024))
		w.(http.Flusher).Flush()
		close(firstChunkSent)

		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-firstChunkSent
		cancel()
	}()

	dst := newDestination(t)

	_, err := NewEngine().Fetch(ctx, srv.URL, dst, "x", nil)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if IsTransportError(err) {
		t.Error("cancellation must not be reported as a transport error")
	}

	if _, statErr := os.Stat(dst.Name()); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("partial file should be removed, stat err = %v", statErr)
	}
}

func TestFetch_AlreadyCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dst := newDestination(t)

	if _, err := NewEngine().Fetch(ctx, srv.URL, dst, "x", nil); !errors.Is(err, ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
	if _, statErr := os.Stat(dst.Name()); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("file should be removed, stat err = %v", statErr)
	}
}

func TestFetchBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/thumb":
			w.Write([]byte("jpeg-bytes"))
		case "/big":
			w.Write(make([]byte, 100))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	e := NewEngine()
	ctx := context.Background()

	b, err := e.FetchBytes(ctx, srv.URL+"/thumb", 1024)
	if err != nil {
		t.Fatalf("FetchBytes: %v", err)
	}
	if string(b) != "jpeg-bytes" {
		t.Errorf("body = %q", b)
	}

	if _, err := e.FetchBytes(ctx, srv.URL+"/big", 10); !IsTransportError(err) {
		t.Errorf("oversized body err = %v, want TransportError", err)
	}

	if _, err := e.FetchBytes(ctx, srv.URL+"/big", 0); err != nil {
		t.Errorf("unbounded FetchBytes: %v", err)
	}

	var te *TransportError
	if _, err := e.FetchBytes(ctx, srv.URL+"/fail", 0); !errors.As(err, &te) || te.StatusCode != http.StatusInternalServerError {
		t.Errorf("err = %v, want HTTP 500 TransportError", err)
	}
}

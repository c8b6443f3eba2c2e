package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultProgressInterval = 500 * time.Millisecond
	DefaultChunkSize        = 32 * 1024
)

var ErrCancelled = errors.New("download cancelled")

// TransportError is a network or HTTP failure while fetching a resource.
// StatusCode is set when the server answered with a non 2xx status.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to download %s: HTTP %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("failed to download %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// Progress is a sample of an in-flight transfer. Total and Percent are zero
// when the server did not report a content length.
type Progress struct {
	Id            string
	Downloaded    int64
	Total         int64
	Percent       uint32
	Speed         float64
	TimeRemaining float64
}

type Engine struct {
	client    *http.Client
	interval  time.Duration
	chunkSize int
	now       func() time.Time
}

type Option func(*Engine)

func WithClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

func WithProgressInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		client:    http.DefaultClient,
		interval:  DefaultProgressInterval,
		chunkSize: DefaultChunkSize,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Fetch streams url into dst and closes it. On failure the partial file is
// removed. Cancellation of ctx is reported as ErrCancelled.
func (e *Engine) Fetch(ctx context.Context, url string, dst *os.File, id string, onProgress func(Progress)) (int64, error) {
	downloaded, err := e.fetch(ctx, url, dst, id, onProgress)
	if err != nil {
		dst.Close()

		removeErr := os.Remove(dst.Name())
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			log.Err(removeErr).Msgf("Failed to remove partial download %s", dst.Name())
		}

		return downloaded, err
	}

	if err := dst.Sync(); err != nil {
		dst.Close()
		return downloaded, fmt.Errorf("failed to flush download of %s: %w", id, err)
	}

	if err := dst.Close(); err != nil {
		return downloaded, fmt.Errorf("failed to close download of %s: %w", id, err)
	}

	return downloaded, nil
}

func (e *Engine) fetch(ctx context.Context, url string, dst io.Writer, id string, onProgress func(Progress)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &TransportError{URL: url, Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ErrCancelled
		}

		return 0, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	sampler := newSampler(id, total, e.interval, e.now())
	buf := make([]byte, e.chunkSize)
	var downloaded int64

	for {
		n, readErr := resp.Body.Read(buf)

		if n > 0 {
			// nothing is written once cancellation is observed
			if ctx.Err() != nil {
				return downloaded, ErrCancelled
			}

			if _, err := dst.Write(buf[:n]); err != nil {
				return downloaded, fmt.Errorf("failed to write download of %s: %w", id, err)
			}

			downloaded += int64(n)

			if p, ok := sampler.sample(downloaded, e.now()); ok && onProgress != nil {
				onProgress(p)
			}
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			if ctx.Err() != nil {
				return downloaded, ErrCancelled
			}

			return downloaded, &TransportError{URL: url, Err: readErr}
		}

		if ctx.Err() != nil {
			return downloaded, ErrCancelled
		}
	}

	log.Debug().Msgf("Downloaded %d bytes for %s", downloaded, id)

	return downloaded, nil
}

// FetchBytes downloads a small resource into memory. Bodies larger than
// maxBytes are rejected when maxBytes is positive.
func (e *Engine) FetchBytes(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	if maxBytes > 0 && int64(len(b)) > maxBytes {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("response larger than %d bytes", maxBytes)}
	}

	return b, nil
}

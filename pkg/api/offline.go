package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/egfanboy/mediapire-offline/pkg/types"
)

type OfflineApi interface {
	SaveTrack(id string, r types.SaveTrackRequest) (*http.Response, error)
	AbortDownload(r types.AbortDownloadRequest) (*http.Response, error)
	GetStats() (types.StorageStats, *http.Response, error)
	GetDownloadStatus() (types.DownloadStatus, *http.Response, error)
}

type offlineClient struct {
	ctx     context.Context
	baseUrl string
	client  *http.Client
}

func (c *offlineClient) do(method string, path string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		err := json.NewEncoder(&buf).Encode(body)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(c.ctx, method, c.baseUrl+"/api/v1"+path, &buf)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

func decode[T any](r *http.Response, err error) (result T, resp *http.Response, errOut error) {
	if err != nil {
		return result, r, err
	}
	defer r.Body.Close()

	if r.StatusCode != http.StatusOK {
		return result, r, fmt.Errorf("offline service returned status code %d instead of 200", r.StatusCode)
	}

	errOut = json.NewDecoder(r.Body).Decode(&result)

	return result, r, errOut
}

func (c *offlineClient) SaveTrack(id string, r types.SaveTrackRequest) (*http.Response, error) {
	return c.do(http.MethodPost, "/offline/tracks/"+url.PathEscape(id), r)
}

func (c *offlineClient) AbortDownload(r types.AbortDownloadRequest) (*http.Response, error) {
	return c.do(http.MethodPost, "/offline/abort", r)
}

func (c *offlineClient) GetStats() (types.StorageStats, *http.Response, error) {
	return decode[types.StorageStats](c.do(http.MethodGet, "/offline/stats", nil))
}

func (c *offlineClient) GetDownloadStatus() (types.DownloadStatus, *http.Response, error) {
	return decode[types.DownloadStatus](c.do(http.MethodGet, "/offline/downloads/active", nil))
}

// NewOfflineClient talks to the offline service at baseUrl, for instance
// http://localhost:9797.
func NewOfflineClient(ctx context.Context, baseUrl string) OfflineApi {
	return &offlineClient{ctx: ctx, baseUrl: baseUrl, client: http.DefaultClient}
}

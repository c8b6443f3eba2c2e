package offline

import (
	"errors"
	"net/http"

	"github.com/egfanboy/mediapire-common/exceptions"
	"github.com/egfanboy/mediapire-offline/internal/blob"
	"github.com/egfanboy/mediapire-offline/internal/catalog"
	"github.com/egfanboy/mediapire-offline/internal/download"
)

var ErrNotFound = errors.New("record not found")

// toApiError maps domain errors to the status code the api reports them with.
func toApiError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *exceptions.ApiException
	if errors.As(err, &apiErr) {
		return err
	}

	switch {
	case errors.Is(err, ErrAlreadyInProgress):
		return &exceptions.ApiException{Err: err, StatusCode: http.StatusConflict}
	case errors.Is(err, download.ErrCancelled):
		return &exceptions.ApiException{Err: errors.New("download cancelled"), StatusCode: http.StatusConflict}
	case errors.Is(err, ErrNotFound):
		return &exceptions.ApiException{Err: err, StatusCode: http.StatusNotFound}
	case errors.Is(err, blob.ErrInvalidId):
		return &exceptions.ApiException{Err: err, StatusCode: http.StatusBadRequest}
	case errors.Is(err, catalog.ErrCorruptMetadata):
		return &exceptions.ApiException{Err: err, StatusCode: http.StatusInternalServerError}
	case download.IsTransportError(err):
		return &exceptions.ApiException{Err: err, StatusCode: http.StatusBadGateway}
	}

	return &exceptions.ApiException{Err: err, StatusCode: http.StatusInternalServerError}
}

package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/trickle/internal/utils"
)

// HeadInfo is the outcome of a metadata-only request.
type HeadInfo struct {
	Status int
	Length int64
	OK     bool
}

// HTTPSource streams a GET response body. It is not safe for concurrent
// transfers; use one per engine.
type HTTPSource struct {
	stream
	client utils.HTTPDoer
}

func NewHTTPSource(client utils.HTTPDoer) *HTTPSource {
	if client == nil {
		client = utils.NewHTTPClient(utils.HTTPClientConfig{})
	}
	return &HTTPSource{client: client}
}

func (h *HTTPSource) Connect(ctx context.Context, url string) (int, error) {
	h.Close()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusConnectionFailed, fmt.Errorf("error creating GET request: %w", err)
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := h.client.Do(req)
	if err != nil {
		log.Debug().Str("op", "source/http").Err(err).Msgf("GET %s failed", url)
		return StatusConnectionFailed, fmt.Errorf("error executing GET request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		log.Debug().Str("op", "source/http").Msgf("GET %s returned status %d", url, resp.StatusCode)
		return resp.StatusCode, nil
	}
	h.open(resp.Body, resp.ContentLength)
	log.Debug().Str("op", "source/http").Int64("length", resp.ContentLength).Msgf("connected to %s", url)
	return resp.StatusCode, nil
}

// Head issues a HEAD request. Redirect statuses count as success since
// some servers answer HEAD with one while still reporting the length.
func (h *HTTPSource) Head(ctx context.Context, url string) HeadInfo {
	info := HeadInfo{Status: StatusConnectionFailed, Length: LengthUnknown}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return info
	}
	resp, err := h.client.Do(req)
	if err != nil {
		log.Debug().Str("op", "source/http").Err(err).Msgf("HEAD %s failed", url)
		return info
	}
	resp.Body.Close()
	info.Status = resp.StatusCode
	switch resp.StatusCode {
	case http.StatusOK, http.StatusMovedPermanently, http.StatusFound:
		info.OK = true
		info.Length = resp.ContentLength
	}
	return info
}

func (h *HTTPSource) ProbeLength(ctx context.Context, url string) int64 {
	info := h.Head(ctx, url)
	if !info.OK {
		return LengthUnknown
	}
	return info.Length
}

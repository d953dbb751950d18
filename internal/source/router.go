package source

import (
	"context"
	"fmt"
	"strings"
)

// Router picks the source for a URL by scheme and then behaves like it.
type Router struct {
	http   *HTTPSource
	s3     *S3Source
	active Source
}

func NewRouter(http *HTTPSource, s3 *S3Source) *Router {
	return &Router{http: http, s3: s3}
}

func (r *Router) pick(url string) (interface {
	Source
	Prober
}, error) {
	scheme, _, ok := strings.Cut(url, "://")
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, url)
	}
	switch strings.ToLower(scheme) {
	case "http", "https":
		if r.http != nil {
			return r.http, nil
		}
	case "s3":
		if r.s3 != nil {
			return r.s3, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
}

func (r *Router) Connect(ctx context.Context, url string) (int, error) {
	if r.active != nil {
		r.active.Close()
		r.active = nil
	}
	src, err := r.pick(url)
	if err != nil {
		return StatusConnectionFailed, err
	}
	r.active = src
	return src.Connect(ctx, url)
}

func (r *Router) ProbeLength(ctx context.Context, url string) int64 {
	src, err := r.pick(url)
	if err != nil {
		return LengthUnknown
	}
	return src.ProbeLength(ctx, url)
}

func (r *Router) Connected() bool {
	return r.active != nil && r.active.Connected()
}

func (r *Router) Available() int {
	if r.active == nil {
		return 0
	}
	return r.active.Available()
}

func (r *Router) Read(p []byte) (int, error) {
	if r.active == nil {
		return 0, ErrNotConnected
	}
	return r.active.Read(p)
}

func (r *Router) Length() int64 {
	if r.active == nil {
		return LengthUnknown
	}
	return r.active.Length()
}

func (r *Router) Close() error {
	if r.active == nil {
		return nil
	}
	return r.active.Close()
}

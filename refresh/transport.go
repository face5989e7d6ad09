package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/staffsync/errkind"
)

// maxErrorPeek caps how much of a 401 body is read to find the error kind.
const maxErrorPeek = 4 << 10

// Transport is an http.RoundTripper that authenticates requests with the
// coordinator's access token and transparently refreshes on TokenExpired.
//
// Requests with a body are retried only when GetBody is set, which
// http.NewRequest does for in-memory bodies.
type Transport struct {
	Coordinator *Coordinator
	// Base defaults to http.DefaultTransport.
	Base http.RoundTripper
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Coordinator == nil {
		return nil, errors.New("refresh: Transport has no Coordinator")
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return t.base().RoundTrip(authorize(req.Context(), req, t.Coordinator.Store().Access()))
	}

	var (
		resp    *http.Response
		attempt int
	)
	err := t.Coordinator.Do(req.Context(), func(ctx context.Context, token string) error {
		out := authorize(ctx, req, token)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return err
			}
			out.Body = body
		}
		attempt++

		r, err := t.base().RoundTrip(out)
		if err != nil {
			return err
		}
		if r.StatusCode == http.StatusUnauthorized && attempt == 1 {
			if kind := peekErrorKind(r); kind == errkind.TokenExpired {
				_ = r.Body.Close()
				return errkind.ErrTokenExpired
			}
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func authorize(ctx context.Context, req *http.Request, token string) *http.Request {
	out := req.Clone(ctx)
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return out
}

// peekErrorKind reads the error kind from a JSON error body and restores the
// body for the caller.
func peekErrorKind(r *http.Response) errkind.Kind {
	head, err := io.ReadAll(io.LimitReader(r.Body, maxErrorPeek))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	if err != nil {
		return ""
	}

	var body struct {
		Error errkind.Kind `json:"error"`
	}
	if json.Unmarshal(head, &body) != nil {
		return ""
	}
	return body.Error
}

// NewClient returns an http.Client whose transport is a Transport over base.
func NewClient(c *Coordinator, base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &Transport{Coordinator: c, Base: base}}
}

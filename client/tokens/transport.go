package tokens

import (
	"net/http"
)

// Doer is the slice of http.Client the transport needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Transport attaches the current access token to every request and performs
// the forced-refresh-and-retry dance on an authentication rejection. A
// request is never retried more than once per rejection.
type Transport struct {
	inner Doer
	coord *Coordinator
}

func NewTransport(inner Doer, coord *Coordinator) *Transport {
	if inner == nil {
		inner = http.DefaultClient
	}
	return &Transport{inner: inner, coord: coord}
}

func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.coord.AccessToken())

	resp, err := t.inner.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	// A sibling tab's concurrent refresh also satisfies the retry: either we
	// refreshed here or the stored token already changed under us.
	t.coord.RefreshIfNeeded(req.Context(), true)

	retry := req.Clone(req.Context())
	retry.Header.Set("Authorization", "Bearer "+t.coord.AccessToken())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return t.inner.Do(retry)
}

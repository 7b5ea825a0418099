package throttle

import (
	"io"
	"net/http"
	"strings"
	"sync"
)

// Transport is an http.RoundTripper that holds a host permit from its Table
// for the whole exchange, until the response body is closed.
type Transport struct {
	table *Table
	base  http.RoundTripper
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(table *Table, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{table: table, base: base}
}

// RoundTrip acquires a permit for the request host, then delegates to the
// base transport.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	permit, err := t.table.Acquire(req.Context(), strings.ToLower(req.URL.Host))
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		permit.Release()
		return nil, err
	}
	if resp.Body == nil {
		permit.Release()
		return resp, nil
	}
	resp.Body = &permitBody{ReadCloser: resp.Body, permit: permit}
	return resp, nil
}

// WrapClient returns a copy of client whose requests go through the table.
// A nil table returns client unchanged.
func (t *Table) WrapClient(client *http.Client) *http.Client {
	if t == nil {
		return client
	}
	if client == nil {
		client = &http.Client{}
	}
	wrapped := *client
	wrapped.Transport = NewTransport(t, client.Transport)
	return &wrapped
}

type permitBody struct {
	io.ReadCloser
	permit *Permit
	once   sync.Once
}

func (b *permitBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.permit.Release)
	return err
}

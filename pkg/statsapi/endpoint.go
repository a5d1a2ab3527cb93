package statsapi

import (
	"context"
	"net/url"
)

// Endpoint binds a client to one API path and parameter set, so a
// constructed endpoint can be validated once and refetched cheaply.
type Endpoint struct {
	client *Client
	path   string
	params url.Values

	resp *Response
}

// NewEndpoint creates an endpoint for the given path and parameters.
func (c *Client) NewEndpoint(path string, params url.Values) *Endpoint {
	return &Endpoint{
		client: c,
		path:   path,
		params: params,
	}
}

// Fetch performs the call and caches the decoded response.
func (e *Endpoint) Fetch(ctx context.Context) (*Response, error) {
	resp, err := e.client.Get(ctx, e.path, e.params)
	if err != nil {
		return nil, err
	}
	e.resp = resp
	return resp, nil
}

// Response returns the last fetched response, or nil before any fetch.
func (e *Endpoint) Response() *Response {
	return e.resp
}

// Path returns the endpoint's API path.
func (e *Endpoint) Path() string {
	return e.path
}

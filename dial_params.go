package libemit

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

type (
	// DialParams holds what is needed to open a websocket connection.
	DialParams struct {
		URL    url.URL
		Header http.Header
	}

	// DialParamsGetter is called before every dial, so signed URLs or short-lived tokens
	// can be refreshed between reconnects.
	DialParamsGetter func(ctx context.Context) (DialParams, error)
)

// StaticDialParams always dials the same URL with the same headers.
func StaticDialParams(u url.URL, header http.Header) DialParamsGetter {
	return func(context.Context) (DialParams, error) {
		return DialParams{URL: u, Header: header.Clone()}, nil
	}
}

// ParseDialParams parses rawURL once and returns a static getter for it.
func ParseDialParams(rawURL string, header http.Header) (DialParamsGetter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(ErrCannotConnect, "invalid url %q: %s", rawURL, err)
	}
	return StaticDialParams(*u, header), nil
}

// Package vault adapts the supported storage back-ends behind two small
// capabilities: validating a credential tuple, and saving a resolved link.
package vault

import (
	"context"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Validator checks a credential tuple against the backing service. Providers
// without a meaningful synchronous pre-check simply do not register one;
// their setup finalises optimistically and verification happens on first use.
type Validator interface {
	Validate(ctx context.Context, creds map[string]string) error
}

// Uploader stores a resolved direct link at the configured destination.
type Uploader interface {
	SaveLink(ctx context.Context, creds map[string]string, link, name string) error
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

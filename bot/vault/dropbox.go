package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/m3rciful/magbot/bot/apperr"
	"github.com/m3rciful/magbot/bot/session"
)

const dropboxAPIBase = "https://api.dropboxapi.com/2"

// Dropbox validates an access token via account introspection and saves
// links with the files/save_url endpoint.
type Dropbox struct {
	base string
	http *http.Client
}

// NewDropbox builds a Dropbox adapter; baseURL is overridable for tests.
func NewDropbox(baseURL string, client *http.Client) *Dropbox {
	if baseURL == "" {
		baseURL = dropboxAPIBase
	}
	return &Dropbox{base: strings.TrimRight(baseURL, "/"), http: httpClientOrDefault(client)}
}

// Validate introspects the token against users/get_current_account.
func (d *Dropbox) Validate(ctx context.Context, creds map[string]string) error {
	token := creds[session.FieldToken]
	if token == "" {
		return apperr.Validation("no token provided", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.base+"/users/get_current_account", nil)
	if err != nil {
		return fmt.Errorf("dropbox request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.http.Do(req)
	if err != nil {
		return apperr.Transport("Dropbox unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return apperr.Validation("Dropbox rejected that token", nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Transport(fmt.Sprintf("Dropbox status %s: %s", resp.Status, strings.TrimSpace(string(body))), nil)
	}
	return nil
}

// SaveLink asks Dropbox to fetch the URL server-side into the account root.
func (d *Dropbox) SaveLink(ctx context.Context, creds map[string]string, link, name string) error {
	token := creds[session.FieldToken]
	if token == "" {
		return apperr.NotConfigured()
	}
	payload, err := json.Marshal(map[string]string{
		"path": "/" + name,
		"url":  link,
	})
	if err != nil {
		return fmt.Errorf("dropbox payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.base+"/files/save_url", strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("dropbox request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return apperr.Transport("Dropbox unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return apperr.Validation("Dropbox rejected the stored token", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return apperr.Transport(fmt.Sprintf("Dropbox save_url status %s", resp.Status), nil)
	}
	return nil
}

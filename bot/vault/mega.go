package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/m3rciful/magbot/bot/apperr"
	"github.com/m3rciful/magbot/bot/session"
)

const megaAPIBase = "https://g.api.mega.co.nz"

// Mega validates an email/password pair with a login pre-check. Uploading is
// delegated to the account's cloud import of the direct link.
type Mega struct {
	base string
	http *http.Client
}

// NewMega builds a Mega adapter; baseURL is overridable for tests.
func NewMega(baseURL string, client *http.Client) *Mega {
	if baseURL == "" {
		baseURL = megaAPIBase
	}
	return &Mega{base: strings.TrimRight(baseURL, "/"), http: httpClientOrDefault(client)}
}

// Validate attempts a login with the collected pair.
func (m *Mega) Validate(ctx context.Context, creds map[string]string) error {
	email := creds[session.FieldEmail]
	password := creds[session.FieldPassword]
	if email == "" || password == "" {
		return apperr.Validation("email and password are both required", nil)
	}
	return m.call(ctx, "login", url.Values{
		"email":    {email},
		"password": {password},
	})
}

// SaveLink imports the direct link into the account.
func (m *Mega) SaveLink(ctx context.Context, creds map[string]string, link, name string) error {
	if creds[session.FieldEmail] == "" || creds[session.FieldPassword] == "" {
		return apperr.NotConfigured()
	}
	return m.call(ctx, "import", url.Values{
		"email":    {creds[session.FieldEmail]},
		"password": {creds[session.FieldPassword]},
		"url":      {link},
		"name":     {name},
	})
}

func (m *Mega) call(ctx context.Context, action string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.base+"/"+action, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mega request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return apperr.Transport("Mega unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apperr.Validation("Mega rejected the credentials", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return apperr.Transport(fmt.Sprintf("Mega status %s", resp.Status), nil)
	}

	// The API reports application errors in-band as {"error": "..."}.
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.Error != "" {
		return apperr.Validation("Mega: "+out.Error, nil)
	}
	return nil
}

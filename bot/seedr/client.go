// Package seedr talks to the Seedr conversion service: it exchanges a login
// for an access token, submits magnet references, and lists folder contents
// until a downloadable file materialises.
package seedr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/magbot/bot/apperr"
)

const (
	// DefaultBaseURL points at the public Seedr REST surface.
	DefaultBaseURL = "https://www.seedr.cc/rest"

	defaultHTTPTimeout = 15 * time.Second
	// RootFolder addresses the account's top-level listing.
	RootFolder = "0"
)

// Credentials holds what the resolver needs for the conversion service:
// either a login pair or a previously obtained token.
type Credentials struct {
	Email    string
	Password string
	Token    string
}

// HasLogin reports whether a login pair is present.
func (c Credentials) HasLogin() bool { return c.Email != "" && c.Password != "" }

// HasToken reports whether a cached token is present.
func (c Credentials) HasToken() bool { return c.Token != "" }

// Empty reports whether neither authentication path is available.
func (c Credentials) Empty() bool { return !c.HasLogin() && !c.HasToken() }

// File is a downloadable entry inside a listing.
type File struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Folder is a sub-folder inside a listing; torrents commonly materialise as one.
type Folder struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Listing is the content of one folder.
type Listing struct {
	Files   []File   `json:"files"`
	Folders []Folder `json:"folders"`
}

// Client is a thin HTTP client over the Seedr endpoints the bot uses.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a Client; baseURL falls back to the public service.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Login exchanges an email/password pair for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var out struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := c.postForm(ctx, "/auth/login", "", form, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		msg := out.Error
		if msg == "" {
			msg = "login rejected"
		}
		return "", apperr.Validation("Seedr login failed: "+msg, nil)
	}
	return out.AccessToken, nil
}

// AddMagnet submits an opaque reference for conversion. Callers treat this
// as fire-and-forget: the listing poll is the source of truth.
func (c *Client) AddMagnet(ctx context.Context, token, magnet string) error {
	form := url.Values{}
	form.Set("magnet", magnet)

	var out struct {
		Result any    `json:"result"`
		Error  string `json:"error"`
	}
	return c.postForm(ctx, "/transfer/magnet", token, form, &out)
}

// ListFolder returns the files and sub-folders of the given folder id.
func (c *Client) ListFolder(ctx context.Context, token, folderID string) (*Listing, error) {
	endpoint := c.base + "/folder"
	if folderID != "" && folderID != RootFolder {
		endpoint += "/" + url.PathEscape(folderID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("seedr list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Transport("Seedr unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apperr.Validation("Seedr rejected the access token", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Transport(fmt.Sprintf("Seedr listing status %s", resp.Status), nil)
	}

	var listing Listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, apperr.Transport("Seedr listing unreadable", err)
	}
	return &listing, nil
}

func (c *Client) postForm(ctx context.Context, path, token string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("seedr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Transport("Seedr unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Transport("Seedr response unreadable", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apperr.Validation("Seedr rejected the credentials", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return apperr.Transport(fmt.Sprintf("Seedr status %s", resp.Status), nil)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return apperr.Transport("Seedr response unreadable", err)
		}
	}
	return nil
}

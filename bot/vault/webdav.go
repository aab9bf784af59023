package vault

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/m3rciful/magbot/bot/apperr"
	"github.com/m3rciful/magbot/bot/session"
)

// Webdav stores links on a WebDAV share. There is no meaningful synchronous
// pre-check for a bare URL, so Webdav registers no Validator: setup finalises
// optimistically and the first SaveLink is the real verification.
type Webdav struct {
	http *http.Client
}

// NewWebdav builds a Webdav uploader.
func NewWebdav(client *http.Client) *Webdav {
	return &Webdav{http: httpClientOrDefault(client)}
}

// SaveLink streams the direct link into the share under name.
func (w *Webdav) SaveLink(ctx context.Context, creds map[string]string, link, name string) error {
	base := strings.TrimRight(creds[session.FieldWebdavURL], "/")
	if base == "" {
		return apperr.NotConfigured()
	}

	src, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("webdav source request: %w", err)
	}
	srcResp, err := w.http.Do(src)
	if err != nil {
		return apperr.Transport("download source unreachable", err)
	}
	defer srcResp.Body.Close()
	if srcResp.StatusCode != http.StatusOK {
		return apperr.Transport(fmt.Sprintf("download source status %s", srcResp.Status), nil)
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, base+"/"+name, srcResp.Body)
	if err != nil {
		return fmt.Errorf("webdav put request: %w", err)
	}
	if user := creds[session.FieldWebdavUser]; user != "" {
		put.SetBasicAuth(user, creds[session.FieldWebdavPass])
	}
	if srcResp.ContentLength > 0 {
		put.ContentLength = srcResp.ContentLength
	}

	resp, err := w.http.Do(put)
	if err != nil {
		return apperr.Transport("WebDAV share unreachable", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.Validation("WebDAV rejected the stored credentials", nil)
	default:
		return apperr.Transport(fmt.Sprintf("WebDAV status %s", resp.Status), nil)
	}
}

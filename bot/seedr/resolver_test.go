package seedr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/magbot/bot/apperr"
)

// fakeSeedr serves login, magnet submit, and folder listings. The listing
// starts empty and materialises a file after readyAfter listing calls.
type fakeSeedr struct {
	readyAfter int32
	failFirst  int32
	listCalls  atomic.Int32
	magnets    atomic.Int32
	logins     atomic.Int32
	asFolder   bool
}

func (f *fakeSeedr) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		if r.FormValue("username") != "u@example.org" || r.FormValue("password") != "pw" {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})
	mux.HandleFunc("/transfer/magnet", func(w http.ResponseWriter, r *http.Request) {
		f.magnets.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": true})
	})
	mux.HandleFunc("/folder", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := f.listCalls.Add(1)
		if n <= f.failFirst {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		listing := Listing{}
		if n > f.readyAfter {
			if f.asFolder {
				listing.Folders = []Folder{{ID: 55, Name: "Show S01"}}
			} else {
				listing.Files = []File{{ID: 1, Name: "episode.mkv", URL: "https://dl.example.org/episode.mkv"}}
			}
		}
		_ = json.NewEncoder(w).Encode(listing)
	})
	mux.HandleFunc("/folder/55", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Listing{
			Files: []File{{ID: 2, Name: "nested.mkv", URL: "https://dl.example.org/nested.mkv"}},
		})
	})
	return mux
}

func TestResolveEmptyCredentialsNeverHitsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	r := NewResolver(NewClient(srv.URL, srv.Client()), 2, time.Millisecond)
	_, err := r.Resolve(context.Background(), Credentials{}, "magnet:?xt=x", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotConfigured))
	assert.Zero(t, hits.Load())
}

func TestResolveLogsInAndFindsFile(t *testing.T) {
	fake := &fakeSeedr{readyAfter: 0}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	r := NewResolver(NewClient(srv.URL, srv.Client()), 3, time.Millisecond)
	res, err := r.Resolve(context.Background(), Credentials{Email: "u@example.org", Password: "pw"}, "magnet:?xt=x", nil)
	require.NoError(t, err)
	assert.Equal(t, "episode.mkv", res.Name)
	assert.Equal(t, "https://dl.example.org/episode.mkv", res.Link)
	assert.Equal(t, "tok-123", res.Token)
	assert.Equal(t, int32(1), fake.logins.Load())
	assert.Equal(t, int32(1), fake.magnets.Load())
}

func TestResolveCachedTokenSkipsLogin(t *testing.T) {
	fake := &fakeSeedr{readyAfter: 0}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	r := NewResolver(NewClient(srv.URL, srv.Client()), 3, time.Millisecond)
	res, err := r.Resolve(context.Background(), Credentials{Token: "tok-123"}, "magnet:?xt=x", nil)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", res.Token)
	assert.Zero(t, fake.logins.Load())
}

func TestResolveSucceedsOnLastAttempt(t *testing.T) {
	// File appears only on the final allowed poll.
	fake := &fakeSeedr{readyAfter: 3}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	r := NewResolver(NewClient(srv.URL, srv.Client()), 4, time.Millisecond)
	var seen []int
	res, err := r.Resolve(context.Background(), Credentials{Token: "tok-123"}, "magnet:?xt=x",
		func(attempt, total int) { seen = append(seen, attempt); assert.Equal(t, 4, total) })
	require.NoError(t, err)
	assert.Equal(t, "episode.mkv", res.Name)
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestResolveExhaustsBudget(t *testing.T) {
	fake := &fakeSeedr{readyAfter: 100}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	r := NewResolver(NewClient(srv.URL, srv.Client()), 3, time.Millisecond)
	_, err := r.Resolve(context.Background(), Credentials{Token: "tok-123"}, "magnet:?xt=x", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindTimeout))
	assert.Equal(t, int32(3), fake.listCalls.Load())
}

func TestResolveSurvivesFlakyListing(t *testing.T) {
	// The first poll hits a 500; the resolve keeps going and the next
	// attempt finds the file.
	fake := &fakeSeedr{failFirst: 1, readyAfter: 1}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	r := NewResolver(NewClient(srv.URL, srv.Client()), 3, time.Millisecond)
	res, err := r.Resolve(context.Background(), Credentials{Token: "tok-123"}, "magnet:?xt=x", nil)
	require.NoError(t, err)
	assert.Equal(t, "episode.mkv", res.Name)
	assert.Equal(t, int32(2), fake.listCalls.Load())
}

func TestResolveFlakyListingStillBoundedByBudget(t *testing.T) {
	fake := &fakeSeedr{failFirst: 100}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	r := NewResolver(NewClient(srv.URL, srv.Client()), 3, time.Millisecond)
	_, err := r.Resolve(context.Background(), Credentials{Token: "tok-123"}, "magnet:?xt=x", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindTimeout))
	assert.Equal(t, int32(3), fake.listCalls.Load())
}

func TestResolveStaleTokenAbortsPolling(t *testing.T) {
	fake := &fakeSeedr{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	r := NewResolver(NewClient(srv.URL, srv.Client()), 5, time.Millisecond)
	_, err := r.Resolve(context.Background(), Credentials{Token: "stale"}, "magnet:?xt=x", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	// Rejected before the listing materialises; no retries were burned.
	assert.Zero(t, fake.listCalls.Load())
}

func TestResolveDescendsIntoFolder(t *testing.T) {
	fake := &fakeSeedr{readyAfter: 0, asFolder: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	r := NewResolver(NewClient(srv.URL, srv.Client()), 2, time.Millisecond)
	res, err := r.Resolve(context.Background(), Credentials{Token: "tok-123"}, "magnet:?xt=x", nil)
	require.NoError(t, err)
	assert.Equal(t, "nested.mkv", res.Name)
}

func TestResolveBadLoginIsValidation(t *testing.T) {
	fake := &fakeSeedr{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	r := NewResolver(NewClient(srv.URL, srv.Client()), 2, time.Millisecond)
	_, err := r.Resolve(context.Background(), Credentials{Email: "u@example.org", Password: "wrong"}, "magnet:?xt=x", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestResolveHonoursContextCancel(t *testing.T) {
	fake := &fakeSeedr{readyAfter: 100}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	r := NewResolver(NewClient(srv.URL, srv.Client()), 50, 50*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, Credentials{Token: "tok-123"}, "magnet:?xt=x", nil)
		done <- err
	}()
	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("resolve did not stop on cancel")
	}
}

func TestListFolderUnauthorizedIsValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	_, err := c.ListFolder(context.Background(), "stale", RootFolder)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

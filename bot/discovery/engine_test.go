package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/magbot/bot/apperr"
)

func listingPage(rows int) string {
	var b strings.Builder
	b.WriteString("<html><body><table><tbody>")
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(&b, `<tr>
			<td><a href="/c/1">Anime</a></td>
			<td><a href="/view/%d#comments">3 comments</a><a href="/view/%d">[SubsPlease] Show Title - %02d (1080p) [ABCD123%d]</a></td>
			<td><a href="/download/%d.torrent">dl</a><a href="magnet:?xt=urn:btih:%040d">magnet</a></td>
			<td>1.%d GiB</td>
			<td>2026-01-0%d</td>
		</tr>`, i, i, i, i, i, i, i, i%9+1)
	}
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}

func newEngine(t *testing.T, mirrors []string) *Engine {
	t.Helper()
	e, err := New(Config{Mirrors: mirrors, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return e
}

func TestSearchParsesAndRanks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "naruto", r.URL.Query().Get("q"))
		fmt.Fprint(w, listingPage(3))
	}))
	defer srv.Close()

	e := newEngine(t, []string{srv.URL})
	results, mirror, err := e.Search(context.Background(), "naruto")
	require.NoError(t, err)
	assert.Equal(t, srv.URL, mirror)
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 3, results[2].Rank)
	// Annotations are stripped from the display title but kept on RawTitle.
	assert.Equal(t, "Show Title - 01", results[0].Title)
	assert.Contains(t, results[0].RawTitle, "[SubsPlease]")
	assert.True(t, strings.HasPrefix(results[0].Magnet, "magnet:?xt="))
	assert.Equal(t, "1.1 GiB", results[0].Size)
}

func TestSearchCapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage(12))
	}))
	defer srv.Close()

	e := newEngine(t, []string{srv.URL})
	results, _, err := e.Search(context.Background(), "bleach")
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestSearchFailsOverToNextMirror(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	dead.Close() // unreachable on purpose

	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage(2))
	}))
	defer alive.Close()

	e := newEngine(t, []string{dead.URL, alive.URL})
	results, mirror, err := e.Search(context.Background(), "one piece")
	require.NoError(t, err)
	assert.Equal(t, alive.URL, mirror)
	assert.Len(t, results, 2)
}

func TestSearchNon2xxCountsAsMirrorFailure(t *testing.T) {
	busted := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer busted.Close()
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage(1))
	}))
	defer alive.Close()

	e := newEngine(t, []string{busted.URL, alive.URL})
	_, mirror, err := e.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, alive.URL, mirror)
}

func TestSearchAllMirrorsDown(t *testing.T) {
	dead := httptest.NewServer(nil)
	dead.Close()

	e := newEngine(t, []string{dead.URL})
	_, _, err := e.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindTransport))
}

func TestSearchEmptyQueryNeverHitsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, listingPage(1))
	}))
	defer srv.Close()

	e := newEngine(t, []string{srv.URL})
	_, _, err := e.Search(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUsage))
	assert.Zero(t, hits.Load())
}

func TestSearchZeroRowsIsNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body><table><tbody></tbody></table></body></html>")
	}))
	defer srv.Close()

	e := newEngine(t, []string{srv.URL})
	_, _, err := e.Search(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestSearchCachesAnswers(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, listingPage(2))
	}))
	defer srv.Close()

	e := newEngine(t, []string{srv.URL})
	_, _, err := e.Search(context.Background(), "Frieren")
	require.NoError(t, err)
	// Same query, different case: one upstream hit total.
	_, _, err = e.Search(context.Background(), "frieren")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

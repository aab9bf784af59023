package discovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListingSkipsMalformedRows(t *testing.T) {
	page := `<html><body><table><tbody>
		<tr><td>too</td><td>few</td><td>cells</td></tr>
		<tr>
			<td>cat</td>
			<td><a href="/view/1">Good Row</a></td>
			<td><a href="/dl/1.torrent">t</a><a href="magnet:?xt=urn:btih:aa">m</a></td>
			<td>700 MiB</td>
		</tr>
		<tr>
			<td>cat</td>
			<td><a href="/view/2">No Magnet Row</a></td>
			<td><a href="/dl/2.torrent">t</a><a href="/dl/2b.torrent">t2</a></td>
			<td>700 MiB</td>
		</tr>
	</tbody></table></body></html>`

	results, err := parseListing(strings.NewReader(page), 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Good Row", results[0].Title)
	assert.Equal(t, 1, results[0].Rank)
}

func TestNormalizeTitle(t *testing.T) {
	cases := map[string]string{
		"[SubsPlease] Frieren - 28 (1080p) [ABCD1234].mkv": "Frieren - 28 .mkv",
		"Plain Title":       "Plain Title",
		"  spaced   out  ":  "spaced out",
		"[only] (brackets)": "[only] (brackets)",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTitle(in), "input %q", in)
	}
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "short", TruncateTitle("short", 10))
	got := TruncateTitle("a very long title that keeps going", 10)
	assert.Equal(t, 10, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, "whole", TruncateTitle("whole", 0))
}

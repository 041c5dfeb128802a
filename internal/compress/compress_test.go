package compress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecideCompressesTextHTML(t *testing.T) {
	d := Decide("gzip, deflate", "text/html", 1000, "index.html", 256)
	require.True(t, d.Compress)
}

func TestDecideRejectsImage(t *testing.T) {
	d := Decide("gzip, deflate", "image/jpeg", 5000, "p.jpg", 256)
	require.False(t, d.Compress)
}

func TestDecideBelowMinBytes(t *testing.T) {
	d := Decide("gzip", "text/plain", 255, "a.txt", 256)
	require.False(t, d.Compress)
}

func TestDecideAtMinBytes(t *testing.T) {
	d := Decide("gzip", "text/plain", 256, "a.txt", 256)
	require.True(t, d.Compress)
}

func TestDecidePrefersBrotli(t *testing.T) {
	d := Decide("gzip, br", "text/plain", 1000, "a.txt", 256)
	require.Equal(t, Brotli, d.Codec)
}

func TestDecideRespectsQZero(t *testing.T) {
	d := Decide("br;q=0, gzip", "text/plain", 1000, "a.txt", 256)
	require.Equal(t, Gzip, d.Codec)
}

func TestDecideNoEncodingOffered(t *testing.T) {
	d := Decide("deflate", "text/plain", 1000, "a.txt", 256)
	require.False(t, d.Compress)
}

func TestCompressRoundTrip(t *testing.T) {
	out, err := Compress(Gzip, []byte("hello world hello world hello world"))
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

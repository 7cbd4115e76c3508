package pairing

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoard_PublishAndClear(t *testing.T) {
	b := NewBoard()

	_, _, ok := b.Current()
	assert.False(t, ok, "empty board has nothing to serve")

	b.Publish([]byte("qr-png"))
	png, updatedAt, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, []byte("qr-png"), png)
	assert.False(t, updatedAt.IsZero())

	b.Clear()
	_, _, ok = b.Current()
	assert.False(t, ok)
}

func TestBoard_CopiesDoNotAlias(t *testing.T) {
	b := NewBoard()
	src := []byte("qr-png")
	b.Publish(src)
	src[0] = 'X'

	png, _, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, []byte("qr-png"), png, "published bytes are copied in")

	png[0] = 'Y'
	again, _, _ := b.Current()
	assert.Equal(t, []byte("qr-png"), again, "served bytes are copied out")
}

func TestPairingImageHandler(t *testing.T) {
	b := NewBoard()
	h := handlePairingImage(b)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/pairing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	b.Publish([]byte("qr-png"))
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/pairing.png", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("qr-png"), body)
}

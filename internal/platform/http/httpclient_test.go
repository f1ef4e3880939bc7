package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(10*time.Second, 3*time.Second)
	assert.Equal(t, 10*time.Second, c.Timeout)

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok, "transport should be *http.Transport")
	assert.Equal(t, 3*time.Second, tr.TLSHandshakeTimeout)
	assert.Equal(t, 10*time.Second, tr.ResponseHeaderTimeout)
	assert.NotNil(t, tr.Proxy)
}

func TestNewHTTPClient_DefaultConnectTimeout(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(time.Second, 0)
	tr := c.Transport.(*http.Transport)
	assert.Equal(t, 5*time.Second, tr.TLSHandshakeTimeout)
}

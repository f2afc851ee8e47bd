package observability

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func okResponse() *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("ok"))}
}

func TestNewHTTPClient_AppliesDefaultTimeout(t *testing.T) {
	c := NewHTTPClient(nil)
	require.NotNil(t, c)
	require.Equal(t, defaultHTTPTimeout, c.Timeout)

	custom := &http.Client{Timeout: 5}
	require.Equal(t, custom, NewHTTPClient(custom))
	require.EqualValues(t, 5, custom.Timeout)
}

func TestWithHeaders_InjectsWithoutOverriding(t *testing.T) {
	base := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		require.Equal(t, "v", req.Header.Get("X-Provider-Key"))
		require.Equal(t, "keep", req.Header.Get("X-Existing"))
		return okResponse(), nil
	})}

	c := WithHeaders(base, map[string]string{"X-Provider-Key": "v", "X-Existing": "override"})
	req, err := http.NewRequest(http.MethodGet, "http://example.test", nil)
	require.NoError(t, err)
	req.Header.Set("X-Existing", "keep")

	resp, err := c.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
}

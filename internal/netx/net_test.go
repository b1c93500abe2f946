package netx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPresigned(t *testing.T) {
	t.Run("success 200 OK", func(t *testing.T) {
		var gotMethod, gotQuery string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotQuery = r.URL.RawQuery
			_, _ = w.Write([]byte("hello, s3"))
		}))
		defer ts.Close()

		body, err := FetchPresigned(context.Background(), ts.Client(), ts.URL+"/capture/s/a.png?X-Amz-Signature=abc")
		require.NoError(t, err)
		defer body.Close()

		b, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "hello, s3", string(b))
		assert.Equal(t, http.MethodGet, gotMethod)
		assert.Equal(t, "X-Amz-Signature=abc", gotQuery)
	})

	t.Run("non-200 -> error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("SignatureDoesNotMatch"))
		}))
		defer ts.Close()

		_, err := FetchPresigned(context.Background(), nil, ts.URL)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "403"), err.Error())
		assert.Contains(t, err.Error(), "SignatureDoesNotMatch")
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := FetchPresigned(context.Background(), nil, "://nope")
		assert.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := FetchPresigned(ctx, nil, ts.URL)
		assert.Error(t, err)
	})
}

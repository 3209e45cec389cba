package bgremove

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveBackgroundSendsForm(t *testing.T) {
	input := []byte("\x89PNG fake payload")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "transparent", r.FormValue("bg_color"))

		f, hdr, err := r.FormFile("source_image_file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))

		got, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, input, got)

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("cutout"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, nil)
	out, err := c.RemoveBackground(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, []byte("cutout"), out)
}

func TestRemoveBackgroundUpstreamError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "quota", status: http.StatusPaymentRequired, body: `{"error":"quota exceeded"}` + "\n", want: `{"error":"quota exceeded"}`},
		{name: "server", status: http.StatusInternalServerError, body: "boom", want: "boom"},
		{name: "long body", status: http.StatusBadRequest, body: strings.Repeat("x", 2000), want: strings.Repeat("x", maxErrorBody) + "..."},
		{name: "long body keeps runes whole", status: http.StatusBadRequest, body: "x" + strings.Repeat("é", 600), want: "x" + strings.Repeat("é", 255) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "k", time.Second, nil).RemoveBackground(context.Background(), []byte("png"))

			var gerr *entity.GatewayError
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, tt.status, gerr.Status)
			assert.Equal(t, tt.want, gerr.Body)
		})
	}
}

func TestRemoveBackgroundRejectsOversizedReply(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "at limit", size: 64},
		{name: "over limit", size: 65, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(bytes.Repeat([]byte{1}, tt.size))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "k", time.Second, nil)
			c.maxBody = 64
			data, err := c.RemoveBackground(context.Background(), []byte("png"))

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Len(t, data, tt.size)
				return
			}
			var gerr *entity.GatewayError
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, http.StatusOK, gerr.Status)
			assert.Contains(t, gerr.Error(), "exceeds 64 bytes")
			assert.Nil(t, data)
		})
	}
}

func TestRemoveBackgroundTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "k", time.Second, nil).RemoveBackground(context.Background(), []byte("png"))

	var gerr *entity.GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, 0, gerr.Status)
	assert.NotNil(t, gerr.Err)
}

func TestRemoveBackgroundHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, "k", 5*time.Second, nil).RemoveBackground(ctx, []byte("png"))

	var gerr *entity.GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treestash/treesync/internal/config"
	"github.com/treestash/treesync/internal/events"
	"github.com/treestash/treesync/internal/logger"
)

func newTestTransport(t *testing.T, serverURL string) (*httpTransport, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	cfg := config.Remote{BaseURL: serverURL, Token: "sometoken", RequestTimeout: 2 * time.Second}

	tr, err := NewHTTPTransport(cfg, bus, logger.Nop())
	require.NoError(t, err)
	return tr.(*httpTransport), bus
}

func TestGet_Document(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/notes/today.txt", r.URL.Path)
		assert.Equal(t, "Bearer sometoken", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("ETag", `"rev-1"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL)
	resp, err := tr.Get(context.Background(), "/notes/today.txt", GetOptions{})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []byte("hello"), resp.Body)
	assert.Equal(t, "text/plain", resp.ContentType)
	assert.Equal(t, "rev-1", resp.Revision)
	assert.Nil(t, resp.Items)
}

func TestGet_ConditionalNotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"rev-1"`, r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL)
	resp, err := tr.Get(context.Background(), "/doc.txt", GetOptions{IfNoneMatch: "rev-1"})

	require.NoError(t, err)
	assert.Equal(t, 304, resp.StatusCode)
}

func TestGet_FolderListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notes/", r.URL.Path)
		w.Header().Set("Content-Type", "application/ld+json")
		w.Header().Set("ETag", `"folder-rev"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"items": {
				"today.txt": {"ETag": "\"r1\"", "Content-Type": "text/plain", "Content-Length": 5},
				"archive/": {"ETag": "r2"}
			}
		}`))
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL)
	resp, err := tr.Get(context.Background(), "/notes/", GetOptions{})

	require.NoError(t, err)
	assert.Equal(t, "folder-rev", resp.Revision)
	require.Len(t, resp.Items, 2)
	assert.True(t, resp.Items["today.txt"].Present)
	assert.Equal(t, "r1", resp.Items["today.txt"].ETag)
	assert.Equal(t, "text/plain", resp.Items["today.txt"].ContentType)
	assert.Equal(t, int64(5), resp.Items["today.txt"].ContentLength)
	assert.Equal(t, "r2", resp.Items["archive/"].ETag)
}

func TestGet_FolderListingBareMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"a.txt": {"ETag": "r1"}}`))
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL)
	resp, err := tr.Get(context.Background(), "/f/", GetOptions{})

	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "r1", resp.Items["a.txt"].ETag)
}

func TestGet_CorruptFolderListing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"interior slash", `{"a/b.txt": {"ETag": "r1"}}`},
		{"missing etag", `{"a.txt": {}}`},
		{"not json", `whoops`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr, _ := newTestTransport(t, srv.URL)
			_, err := tr.Get(context.Background(), "/f/", GetOptions{})
			require.ErrorIs(t, err, ErrInvalidListing)
		})
	}
}

func TestPut_IfMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, `"old-rev"`, r.Header.Get("If-Match"))
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))

		w.Header().Set("ETag", `"new-rev"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL)
	resp, err := tr.Put(context.Background(), "/doc.txt", []byte("x"), "text/plain", PutOptions{IfMatch: "old-rev"})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "new-rev", resp.Revision)
}

func TestPut_IfNoneMatchStar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "*", r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL)
	resp, err := tr.Put(context.Background(), "/doc.txt", []byte("x"), "text/plain", PutOptions{IfNoneMatch: "*"})

	require.NoError(t, err, "412 is a transport-level success")
	assert.Equal(t, 412, resp.StatusCode)
}

func TestDelete_IfMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, `"rev-1"`, r.Header.Get("If-Match"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL)
	resp, err := tr.Delete(context.Background(), "/doc.txt", DeleteOptions{IfMatch: "rev-1"})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestNetworkError_FlipsOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	tr, bus := newTestTransport(t, srv.URL)
	events1 := bus.Subscribe()
	defer bus.Unsubscribe(events1)

	require.True(t, tr.Online())
	_, err := tr.Get(context.Background(), "/doc.txt", GetOptions{})

	require.ErrorIs(t, err, ErrNetwork)
	assert.False(t, tr.Online())

	select {
	case ev := <-events1:
		assert.Equal(t, events.KindNetworkOffline, ev.Kind)
	default:
		t.Fatal("expected a network-offline event")
	}
}

func TestRecovery_FlipsOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, bus := newTestTransport(t, srv.URL)
	tr.online.Store(false)
	events1 := bus.Subscribe()
	defer bus.Unsubscribe(events1)

	_, err := tr.Get(context.Background(), "/doc.txt", GetOptions{})
	require.NoError(t, err)
	assert.True(t, tr.Online())

	select {
	case ev := <-events1:
		assert.Equal(t, events.KindNetworkOnline, ev.Kind)
	default:
		t.Fatal("expected a network-online event")
	}
}

func TestImpliedAuth(t *testing.T) {
	bus := events.NewBus()
	tr, err := NewHTTPTransport(config.Remote{BaseURL: "http://localhost:9"}, bus, logger.Nop())
	require.NoError(t, err)
	assert.True(t, tr.ImpliedAuth())

	tr2, err := NewHTTPTransport(config.Remote{BaseURL: "http://localhost:9", Token: "t"}, bus, logger.Nop())
	require.NoError(t, err)
	assert.False(t, tr2.ImpliedAuth())
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid http", "http://localhost:8080", "http://localhost:8080", false},
		{"no scheme", "localhost:8080", "http://localhost:8080", false},
		{"trailing slash", "http://localhost:8080/", "http://localhost:8080", false},
		{"empty", "", "", true},
		{"no host", "http://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeBaseURL(tt.input)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEncodePath(t *testing.T) {
	assert.Equal(t, "/notes/my%20file.txt", encodePath("/notes/my file.txt"))
	assert.Equal(t, "/notes/", encodePath("/notes/"))
}

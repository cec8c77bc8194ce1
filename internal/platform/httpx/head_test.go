// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/sized":
			assert.Equal(t, "Bearer x", r.Header.Get("Authorization"))
			w.Header().Set("Content-Length", "4096")
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(2 * time.Second)
	ctx := context.Background()

	n, err := ContentLength(ctx, client, srv.URL+"/sized", map[string]string{"Authorization": "Bearer x"})
	require.NoError(t, err)
	assert.EqualValues(t, 4096, n)

	_, err = ContentLength(ctx, client, srv.URL+"/missing", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
}

func TestGetBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		_, _ = w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	client := NewClient(2 * time.Second)

	body, err := GetBody(context.Background(), client, srv.URL+"/index.m3u8", nil)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(body))

	_, err = GetBody(context.Background(), client, srv.URL+"/gone", nil)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestGetBody_SizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := maxBodyBytes
		if r.URL.Path == "/over" {
			n++
		}
		_, _ = w.Write(bytes.Repeat([]byte("#"), n))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)

	body, err := GetBody(context.Background(), client, srv.URL+"/exact", nil)
	require.NoError(t, err)
	assert.Len(t, body, maxBodyBytes)

	_, err = GetBody(context.Background(), client, srv.URL+"/over", nil)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tdjsnelling/sqtracker-sub000/store"
	"github.com/tdjsnelling/sqtracker-sub000/store/memory"
)

func newTestAPI(t *testing.T) (*Tracker, *gin.Engine) {
	opts := NewDefaultOpts()
	opts.Store = memory.NewDriver()
	opts.UpstreamURL = "http://localhost:1"
	tkr, err := New(context.Background(), opts)
	require.NoError(t, err)
	return tkr, NewAPIHandler(tkr)
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, &buf)
	router.ServeHTTP(w, req)
	return w
}

func TestAPIPing(t *testing.T) {
	_, router := newTestAPI(t)
	w := doJSON(router, http.MethodPost, "/ping", PingRequest{Ping: "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp PingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "hello", resp.Pong)
}

func TestAPIUserLifecycle(t *testing.T) {
	tkr, router := newTestAPI(t)

	w := doJSON(router, http.MethodPost, "/user", UserAddRequest{
		UserID: 1, UID: "aabbccdd", EmailVerified: true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var user store.User
	require.NoError(t, tkr.UserGetByUID(&user, "aabbccdd"))
	require.Equal(t, uint32(1), user.UserID)

	// Duplicates are rejected
	w = doJSON(router, http.MethodPost, "/user", UserAddRequest{
		UserID: 1, UID: "aabbccdd", EmailVerified: true,
	})
	require.Equal(t, http.StatusConflict, w.Code)

	// Banned users cannot be registered at all
	w = doJSON(router, http.MethodPost, "/user", UserAddRequest{
		UserID: 2, UID: "eeff0011", IsBanned: true,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodDelete, "/user/aabbccdd", nil)
	require.Equal(t, http.StatusOK, w.Code)
	// The cache entry dies with the row
	require.Error(t, tkr.UserGetByUID(&user, "aabbccdd"))

	w = doJSON(router, http.MethodDelete, "/user/aabbccdd", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPITorrentLifecycle(t *testing.T) {
	tkr, router := newTestAPI(t)
	ihHex := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	w := doJSON(router, http.MethodPost, "/torrent", TorrentAddRequest{InfoHash: ihHex})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/torrent", TorrentAddRequest{InfoHash: ihHex})
	require.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, "/torrent", TorrentAddRequest{InfoHash: "tooshort"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Toggle freeleech on
	w = doJSON(router, http.MethodPatch, "/torrent/"+ihHex, TorrentUpdateRequest{IsFreeleech: true})
	require.Equal(t, http.StatusOK, w.Code)

	var ih store.InfoHash
	require.NoError(t, store.InfoHashFromHex(&ih, ihHex))
	var tor store.Torrent
	require.NoError(t, tkr.store.TorrentGet(&tor, ih, false))
	require.True(t, tor.IsFreeleech)

	w = doJSON(router, http.MethodDelete, "/torrent/"+ihHex, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Error(t, tkr.store.TorrentGet(&tor, ih, false))
	// Soft deleted, the row survives for history
	require.NoError(t, tkr.store.TorrentGet(&tor, ih, true))
}

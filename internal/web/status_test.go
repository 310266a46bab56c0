package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/config"
	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/domain"
	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store, *httptest.Server) {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "rooms.json"))
	s := NewServer(st)
	router := SetupRouter(&config.Config{Mode: "release"}, s)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return s, st, ts
}

func TestHealthz(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomsEndpointReflectsStore(t *testing.T) {
	_, st, ts := newTestServer(t)
	room := domain.NewRoom("alice", "main")
	require.NoError(t, room.Join("bob"))
	st.Add(room)

	resp, err := http.Get(ts.URL + "/api/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rooms []domain.Room
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "main", rooms[0].Name)
	assert.Equal(t, []string{"alice", "bob"}, rooms[0].Members)
	assert.Equal(t, 1, rooms[0].Number)
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub()
	c := newClient(nil)
	h.add(c)
	require.Equal(t, 1, h.Len())

	// Fill the buffer without a writePump draining it, then one more.
	for i := 0; i < cap(c.send)+1; i++ {
		h.Broadcast([]byte("{}"))
	}
	assert.Equal(t, 0, h.Len(), "client with a full buffer should be dropped")
}

func TestClientTrySendAfterClose(t *testing.T) {
	c := newClient(nil)
	c.close()
	assert.Error(t, c.trySend([]byte("{}")))
}

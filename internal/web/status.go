package web

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/config"
	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes the room list to observers who are at the website instead
// of the IRC client.
type Server struct {
	store *store.Store
	hub   *Hub
}

func NewServer(st *store.Store) *Server {
	return &Server{store: st, hub: NewHub()}
}

// NotifyChange pushes the current room list to every observer. Wired as
// the engine's on-change hook.
func (s *Server) NotifyChange() {
	data, err := json.Marshal(s.store.Snapshot())
	if err != nil {
		log.Error().Err(err).Str("module", "web").Msg("encode room list")
		return
	}
	s.hub.Broadcast(data)
}

func SetupRouter(cfg *config.Config, s *Server) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := r.Group("/api")
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.store.Snapshot())
	})
	api.GET("/ws/rooms", s.handleWS)

	log.Info().Str("module", "web").Str("addr", cfg.HTTPAddr).Msg("status router setup")
	return r
}

// handleWS upgrades an observer and streams room-list snapshots: one on
// connect, then one after every mutation.
func (s *Server) handleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "web").Msg("ws upgrade")
		return
	}
	cl := newClient(ws)
	s.hub.add(cl)
	go cl.writePump()

	if data, err := json.Marshal(s.store.Snapshot()); err == nil {
		_ = cl.trySend(data)
	}

	// Reads are only consumed to notice the peer going away.
	go func() {
		defer func() {
			s.hub.remove(cl)
			cl.close()
		}()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

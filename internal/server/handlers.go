package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"uno/internal/database"
	"uno/internal/game"
	"uno/internal/model"
)

type Handler struct {
	Manager *game.Manager
	Ledger  *database.Ledger
	Hub     *Hub

	origins  []string
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHandler(m *game.Manager, l *database.Ledger, hub *Hub, origins []string, log zerolog.Logger) *Handler {
	h := &Handler{Manager: m, Ledger: l, Hub: hub, origins: origins, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Routes builds the HTTP surface: health, ledger, room list and the game
// websocket.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", h.Health)
	r.Get("/players", h.Players)
	r.Get("/rooms", h.Rooms)
	r.Get("/ws", h.HandleGameWS)
	return r
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("UNO Server is running"))
}

// Players returns the whole stats ledger keyed by player name.
func (h *Handler) Players(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Ledger.Snapshot())
}

func (h *Handler) Rooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Manager.Summaries())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// HandleGameWS upgrades the request and pumps actions from the connection
// into the room manager until it closes.
func (h *Handler) HandleGameWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{id: uuid.NewString(), conn: ws, send: make(chan []byte, sendBuffer)}
	h.Hub.register(c)
	go c.writePump()
	h.log.Info().Str("conn", c.id).Str("remote", r.RemoteAddr).Msg("connection opened")

	defer func() {
		h.Manager.OnDisconnect(c.id)
		h.Hub.unregister(c.id)
		ws.Close()
		h.log.Info().Str("conn", c.id).Msg("connection closed")
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("conn", c.id).Msg("read failed")
			}
			return
		}
		var action model.Action
		if err := json.Unmarshal(data, &action); err != nil {
			h.Hub.Send(c.id, model.Message{
				Type:    model.MsgRejected,
				Payload: model.RejectedPayload{Reason: "malformed message"},
			})
			continue
		}
		h.Manager.HandleAction(c.id, action)
	}
}

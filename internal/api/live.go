package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/api/respond"
	"github.com/promptguild/promptguild/internal/auth"
	"github.com/promptguild/promptguild/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveHandler pushes live query results over websockets. Every message is
// the complete current result set as a JSON array.
type LiveHandler struct {
	prompts *services.PromptService
	guilds  *services.GuildService
	log     zerolog.Logger
}

func NewLiveHandler(prompts *services.PromptService, guilds *services.GuildService, log zerolog.Logger) *LiveHandler {
	return &LiveHandler{prompts: prompts, guilds: guilds, log: log}
}

// LivePrompts GET /api/live/prompts and /api/live/guilds/{guildId}/prompts
func (h *LiveHandler) LivePrompts(w http.ResponseWriter, r *http.Request) {
	sub, err := h.prompts.Subscribe(r.Context(), scopeOf(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	stream(w, r, sub, h.log.With().Str("guild_id", mux.Vars(r)["guildId"]).Logger())
}

// LiveGuilds GET /api/live/guilds
func (h *LiveHandler) LiveGuilds(w http.ResponseWriter, r *http.Request) {
	sub, err := h.guilds.Subscribe(auth.CallerID(r.Context()))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	stream(w, r, sub, h.log)
}

// stream owns sub: it is canceled when the client goes away, and the socket
// is closed normally when the subscription ends on its own.
func stream[T any](w http.ResponseWriter, r *http.Request, sub *services.Subscription[T], log zerolog.Logger) {
	defer sub.Cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reads only service control frames and detect disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Err(err).Msg("live connection read ended")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case res, ok := <-sub.Updates():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subscription ended"))
				return
			}
			if res == nil {
				res = []T{}
			}
			if err := conn.WriteJSON(res); err != nil {
				log.Debug().Err(err).Msg("live write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

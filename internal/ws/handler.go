package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/ws"
	"github.com/rs/zerolog/log"
)

const snapshotEventType = "duel.snapshot"

type DuelReader interface {
	Get(ctx context.Context, id string) (*model.Duel, *reject.ProblemWithTrace)
}

type wsHandler struct {
	notificationHub *ws.WebSocketNotificationHub
	duels           DuelReader
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type snapshotMessage struct {
	Type   string      `json:"type"`
	DuelId string      `json:"duelId"`
	Duel   *model.Duel `json:"duel"`
}

func RegisterRoutes(rg *gin.RouterGroup, hub *ws.WebSocketNotificationHub, duels DuelReader) {
	handler := wsHandler{
		notificationHub: hub,
		duels:           duels,
	}

	routes := rg.Group("/ws")
	routes.GET("/duels/:duelId", handler.serveWs)
}

func (wsh *wsHandler) serveWs(c *gin.Context) {
	duelId := c.Param("duelId")
	duel, problem := wsh.duels.Get(c.Request.Context(), duelId)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("duelId", duelId).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(snapshotMessage{Type: snapshotEventType, DuelId: duelId, Duel: duel}); err != nil {
		log.Debug().Err(err).Str("duelId", duelId).Msg("Cannot send duel snapshot")
		return
	}

	wsh.notificationHub.RegisterListener(duelId, conn)
	defer wsh.notificationHub.UnregisterListener(duelId, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("duelId", duelId).Msg("Error reading ws message")
			}
			return
		}
	}
}

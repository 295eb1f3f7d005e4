package duel

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/utils"
	"github.com/rs/zerolog/log"
)

type duelHandler struct {
	duelService *Service
	baseUrl     string
}

func RegisterRoutes(rg *gin.RouterGroup, service *Service, baseUrl string) {
	handler := duelHandler{
		duelService: service,
		baseUrl:     strings.TrimRight(baseUrl, "/"),
	}

	routes := rg.Group("/clash-duels")
	routes.POST("", handler.createDuel)
	routes.GET("", handler.listDuels)
	routes.GET("/:duelId", handler.getDuel)
	routes.POST("/:duelId/accept", handler.acceptDuel)
	routes.POST("/:duelId/cancel", handler.cancelDuel)
	routes.POST("/:duelId/verify", handler.verifyDuel)

	rg.GET("/clash-duel", handler.createChallenge)
	rg.GET("/health", handler.health)

	registerActionRoutes(rg, &handler)
}

type duelData struct {
	Creator   model.Party      `json:"creator"`
	Wager     model.Wager      `json:"wager"`
	CreatedAt time.Time        `json:"createdAt"`
	Status    model.DuelStatus `json:"status"`
}

type createDuelResponse struct {
	Success          bool     `json:"success"`
	DuelId           string   `json:"duelId"`
	OpponentJoinLink string   `json:"opponentJoinLink"`
	DuelData         duelData `json:"duelData"`
	OpponentBlink    *action  `json:"opponentBlink,omitempty"`
}

type duelResponse struct {
	Success bool        `json:"success"`
	Duel    *model.Duel `json:"duel"`
}

type listDuelsResponse struct {
	Duels         []model.Duel `json:"duels"`
	NextPageToken int64        `json:"nextPageToken,omitempty"`
	ItemCount     int64        `json:"itemCount"`
}

type acceptDuelRequest struct {
	PlayerTag string `json:"playerTag" form:"playerTag"`
}

func (dh *duelHandler) createDuel(c *gin.Context) {
	body := CreateDuelRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	duel, err := dh.duelService.Create(c.Request.Context(), body)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, dh.createdResponse(duel))
}

// createChallenge is the query string flavour of createDuel. The creator also
// proves the tag by naming its owner.
func (dh *duelHandler) createChallenge(c *gin.Context) {
	body := CreateDuelRequest{
		PlayerTag:   c.Query("playerTag"),
		PlayerName:  c.Query("playerName"),
		WagerAmount: WagerAmount(c.Query("wagerAmount")),
		Token:       c.Query("token"),
	}
	if body.PlayerTag == "" || body.PlayerName == "" || body.WagerAmount == "" || body.Token == "" {
		problem := validationProblem(nil)
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}

	duel, err := dh.duelService.Create(c.Request.Context(), body)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	response := dh.createdResponse(duel)
	response.OpponentBlink = joinDuelAction(duel)
	c.JSON(http.StatusOK, response)
}

func (dh *duelHandler) listDuels(c *gin.Context) {
	page, err := utils.NewPageRequest(c)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	duels, total, err := dh.duelService.List(c.Request.Context(), ListFilter{
		PlayerTag: c.Query("playerTag"),
		Limit:     page.Size,
		Offset:    page.Offset,
	})
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	paged := utils.NewPageResponse(page, duels, total)
	c.JSON(http.StatusOK, listDuelsResponse{
		Duels:         paged.Items,
		NextPageToken: paged.NextPageToken,
		ItemCount:     paged.ItemCount,
	})
}

func (dh *duelHandler) getDuel(c *gin.Context) {
	duel, err := dh.duelService.Get(c.Request.Context(), c.Param("duelId"))
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, gin.H{"duel": duel})
}

func (dh *duelHandler) acceptDuel(c *gin.Context) {
	body := acceptDuelRequest{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
			return
		}
	}
	if body.PlayerTag == "" {
		body.PlayerTag = c.Query("playerTag")
	}

	duel, err := dh.duelService.Accept(c.Request.Context(), c.Param("duelId"), body.PlayerTag)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, duelResponse{Success: true, Duel: duel})
}

func (dh *duelHandler) cancelDuel(c *gin.Context) {
	duel, err := dh.duelService.Cancel(c.Request.Context(), c.Param("duelId"))
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, duelResponse{Success: true, Duel: duel})
}

func (dh *duelHandler) verifyDuel(c *gin.Context) {
	duel, err := dh.duelService.Verify(c.Request.Context(), c.Param("duelId"))
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, duelResponse{Success: true, Duel: duel})
}

func (dh *duelHandler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := dh.duelService.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (dh *duelHandler) createdResponse(duel *model.Duel) createDuelResponse {
	return createDuelResponse{
		Success:          true,
		DuelId:           duel.Id,
		OpponentJoinLink: dh.joinLink(duel.Id),
		DuelData: duelData{
			Creator:   duel.Creator(),
			Wager:     duel.Wager(),
			CreatedAt: duel.CreatedAt,
			Status:    duel.Status,
		},
	}
}

func (dh *duelHandler) joinLink(duelId string) string {
	return dh.baseUrl + "/api/join-duel?duelId=" + duelId
}

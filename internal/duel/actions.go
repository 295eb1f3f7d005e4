package duel

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/clashroyale"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/reject"
)

const (
	actionVersion    = "2.2.1"
	actionChainIds   = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	actionIcon       = "https://yt3.googleusercontent.com/as7lQ8BrpbZ1b2sf5IrCwHix5l3Vel5VyQ4No_zWp8Sei1SansUl_uRLMtJhmrPqB7KIlMv4svM=s900-c-k-c0x00ffffff-no-rj"
	joinExternalLink = "https://play.clashroyale.com"
	tagParameterHint = "Your Clash Royale Player Tag (e.g., #2YCVJ0C9G)"
)

// Solana Actions payloads. Only the subset this service emits is modelled.
type action struct {
	Type        string      `json:"type,omitempty"`
	Title       string      `json:"title"`
	Icon        string      `json:"icon"`
	Description string      `json:"description"`
	Label       string      `json:"label"`
	Links       actionLinks `json:"links"`
}

type actionLinks struct {
	Actions []linkedAction `json:"actions"`
}

type linkedAction struct {
	Type       string            `json:"type"`
	Label      string            `json:"label"`
	Href       string            `json:"href"`
	Parameters []actionParameter `json:"parameters"`
}

type actionParameter struct {
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	Label    string         `json:"label"`
	Required bool           `json:"required"`
	Pattern  string         `json:"pattern,omitempty"`
	Options  []actionOption `json:"options,omitempty"`
}

type actionOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type actionPostRequest struct {
	Account string         `json:"account"`
	Data    map[string]any `json:"data"`
}

type actionPostResponse struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	ExternalLink string `json:"externalLink"`
}

func registerActionRoutes(rg *gin.RouterGroup, dh *duelHandler) {
	routes := rg.Group("", actionHeaders)
	routes.GET("/action", dh.getCreateAction)
	routes.POST("/action", dh.postCreateAction)
	routes.GET("/join-duel", dh.getJoinAction)
	routes.POST("/join-duel", dh.postJoinAction)
}

func actionHeaders(c *gin.Context) {
	c.Header("X-Action-Version", actionVersion)
	c.Header("X-Blockchain-Ids", actionChainIds)
}

func tagParameter() actionParameter {
	return actionParameter{
		Type:     "text",
		Name:     "playerTag",
		Label:    tagParameterHint,
		Required: true,
		Pattern:  clashroyale.TagPattern,
	}
}

func createDuelAction() action {
	options := make([]actionOption, 0, len(model.SupportedTokens))
	for _, token := range model.SupportedTokens {
		options = append(options, actionOption{Label: string(token), Value: string(token)})
	}

	return action{
		Type:        "action",
		Title:       "Clash Royale Duel",
		Icon:        actionIcon,
		Description: "Challenge a friend to a Clash Royale duel with crypto stakes! Winner takes all.",
		Label:       "Create Duel",
		Links: actionLinks{Actions: []linkedAction{{
			Type:  "transaction",
			Label: "Create Duel",
			Href:  "/api/clash-duels",
			Parameters: []actionParameter{
				tagParameter(),
				{Type: "number", Name: "wagerAmount", Label: "Wager Amount", Required: true},
				{Type: "select", Name: "token", Label: "Select Token", Required: true, Options: options},
			},
		}}},
	}
}

func joinDuelAction(duel *model.Duel) *action {
	description := "Join a Clash Royale duel with crypto stakes! Winner takes all."
	if duel.CreatorName != "" {
		description = fmt.Sprintf("%s has challenged you to a Clash Royale duel for %s %s!",
			duel.CreatorName, duel.WagerAmount, duel.WagerToken)
	}

	return &action{
		Type:        "action",
		Title:       "Join Clash Royale Duel",
		Icon:        actionIcon,
		Description: description,
		Label:       "Join Duel",
		Links: actionLinks{Actions: []linkedAction{{
			Type:       "transaction",
			Label:      "Join Duel",
			Href:       "/api/clash-duels/" + duel.Id + "/accept",
			Parameters: []actionParameter{tagParameter()},
		}}},
	}
}

func (dh *duelHandler) getCreateAction(c *gin.Context) {
	c.JSON(http.StatusOK, createDuelAction())
}

func (dh *duelHandler) postCreateAction(c *gin.Context) {
	body := actionPostRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	duel, err := dh.duelService.Create(c.Request.Context(), CreateDuelRequest{
		PlayerTag:   dataString(body.Data, "playerTag"),
		WagerAmount: WagerAmount(dataString(body.Data, "wagerAmount")),
		Token:       dataString(body.Data, "token"),
	})
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, actionPostResponse{
		Type:         "external-link",
		Message:      "Duel created successfully!",
		ExternalLink: dh.joinLink(duel.Id),
	})
}

func (dh *duelHandler) getJoinAction(c *gin.Context) {
	duelId := c.Query("duelId")
	if duelId == "" {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	duel, err := dh.duelService.Get(c.Request.Context(), duelId)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, joinDuelAction(duel))
}

func (dh *duelHandler) postJoinAction(c *gin.Context) {
	duelId := c.Query("duelId")
	if duelId == "" {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	body := actionPostRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	playerTag := dataString(body.Data, "playerTag")
	if playerTag == "" {
		playerTag = c.Query("playerTag")
	}
	if _, err := dh.duelService.Accept(c.Request.Context(), duelId, playerTag); err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, actionPostResponse{
		Type:         "external-link",
		Message:      "Successfully joined duel! Get ready for battle!",
		ExternalLink: joinExternalLink,
	})
}

// dataString reads an action input. Wallets send numbers as JSON numbers or strings.
func dataString(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

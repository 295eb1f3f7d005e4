package model

// Player is the profile returned by the Clash Royale players endpoint.
type Player struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Trophies int    `json:"trophies"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

type BattleParticipant struct {
	Tag    string `json:"tag"`
	Name   string `json:"name"`
	Crowns int    `json:"crowns"`
}

// Battle is one entry of a player's battle log, seen from that player's side:
// Team[0] is the log owner.
type Battle struct {
	Type       string              `json:"type"`
	BattleTime string              `json:"battleTime"`
	Team       []BattleParticipant `json:"team"`
	Opponent   []BattleParticipant `json:"opponent"`
}

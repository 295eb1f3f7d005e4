package model

import (
	"encoding/json"
	"time"
)

type Duel struct {
	Id               string     `gorm:"primaryKey"`
	Status           DuelStatus `gorm:"index;not null"`
	CreatorTag       string     `gorm:"index;not null"`
	CreatorName      string
	CreatorTrophies  int
	OpponentTag      *string `gorm:"index"`
	OpponentName     *string
	OpponentTrophies *int
	WagerAmount      string `gorm:"not null"`
	WagerToken       Token  `gorm:"not null"`
	CreatedAt        time.Time
	AcceptedAt       *time.Time
	CompletedAt      *time.Time
	WinnerTag        *string
	BattleTime       *time.Time
	CreatorCrowns    *int
	OpponentCrowns   *int
	Watching         bool `gorm:"index;not null;default:false"`
	WatchDeadline    *time.Time
}

func (Duel) TableName() string {
	return "duels"
}

type Party struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Trophies int    `json:"trophies"`
}

type Wager struct {
	Amount string `json:"amount"`
	Token  Token  `json:"token"`
}

type BattleResult struct {
	BattleTime     time.Time `json:"battleTime"`
	CreatorCrowns  int       `json:"creatorCrowns"`
	OpponentCrowns int       `json:"opponentCrowns"`
}

func (d Duel) Creator() Party {
	return Party{Tag: d.CreatorTag, Name: d.CreatorName, Trophies: d.CreatorTrophies}
}

// Opponent is nil while the duel is still waiting for a challenger.
func (d Duel) Opponent() *Party {
	if d.OpponentTag == nil {
		return nil
	}
	p := Party{Tag: *d.OpponentTag}
	if d.OpponentName != nil {
		p.Name = *d.OpponentName
	}
	if d.OpponentTrophies != nil {
		p.Trophies = *d.OpponentTrophies
	}
	return &p
}

func (d Duel) Wager() Wager {
	return Wager{Amount: d.WagerAmount, Token: d.WagerToken}
}

func (d Duel) Result() *BattleResult {
	if d.BattleTime == nil || d.CreatorCrowns == nil || d.OpponentCrowns == nil {
		return nil
	}
	return &BattleResult{
		BattleTime:     *d.BattleTime,
		CreatorCrowns:  *d.CreatorCrowns,
		OpponentCrowns: *d.OpponentCrowns,
	}
}

// Involves reports whether tag is one of the two parties.
func (d Duel) Involves(tag string) bool {
	if d.CreatorTag == tag {
		return true
	}
	return d.OpponentTag != nil && *d.OpponentTag == tag
}

type duelMonitorView struct {
	Watching bool       `json:"watching"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type duelView struct {
	Id           string           `json:"id"`
	Status       DuelStatus       `json:"status"`
	Creator      Party            `json:"creator"`
	Opponent     *Party           `json:"opponent,omitempty"`
	Wager        Wager            `json:"wager"`
	CreatedAt    time.Time        `json:"createdAt"`
	AcceptedAt   *time.Time       `json:"acceptedAt,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	Winner       *string          `json:"winner,omitempty"`
	BattleResult *BattleResult    `json:"battleResult,omitempty"`
	Monitor      *duelMonitorView `json:"monitor,omitempty"`
}

func (d Duel) MarshalJSON() ([]byte, error) {
	view := duelView{
		Id:           d.Id,
		Status:       d.Status,
		Creator:      d.Creator(),
		Opponent:     d.Opponent(),
		Wager:        d.Wager(),
		CreatedAt:    d.CreatedAt,
		AcceptedAt:   d.AcceptedAt,
		CompletedAt:  d.CompletedAt,
		Winner:       d.WinnerTag,
		BattleResult: d.Result(),
	}
	if d.Status == DuelAccepted {
		view.Monitor = &duelMonitorView{Watching: d.Watching, Deadline: d.WatchDeadline}
	}
	return json.Marshal(view)
}

func (d *Duel) UnmarshalJSON(data []byte) error {
	var view duelView
	if err := json.Unmarshal(data, &view); err != nil {
		return err
	}
	*d = Duel{
		Id:              view.Id,
		Status:          view.Status,
		CreatorTag:      view.Creator.Tag,
		CreatorName:     view.Creator.Name,
		CreatorTrophies: view.Creator.Trophies,
		WagerAmount:     view.Wager.Amount,
		WagerToken:      view.Wager.Token,
		CreatedAt:       view.CreatedAt,
		AcceptedAt:      view.AcceptedAt,
		CompletedAt:     view.CompletedAt,
		WinnerTag:       view.Winner,
	}
	if view.Opponent != nil {
		d.OpponentTag = &view.Opponent.Tag
		d.OpponentName = &view.Opponent.Name
		d.OpponentTrophies = &view.Opponent.Trophies
	}
	if view.BattleResult != nil {
		d.BattleTime = &view.BattleResult.BattleTime
		d.CreatorCrowns = &view.BattleResult.CreatorCrowns
		d.OpponentCrowns = &view.BattleResult.OpponentCrowns
	}
	if view.Monitor != nil {
		d.Watching = view.Monitor.Watching
		d.WatchDeadline = view.Monitor.Deadline
	}
	return nil
}

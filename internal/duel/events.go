package duel

import (
	"time"

	"github.com/google/uuid"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
)

const EventsTopic = "clash.duels.events"

type EventType string

const (
	EventCreated   EventType = "duel.created"
	EventAccepted  EventType = "duel.accepted"
	EventCompleted EventType = "duel.completed"
	EventCancelled EventType = "duel.cancelled"
	EventExpired   EventType = "duel.expired"
)

type DuelEvent struct {
	Id         string           `json:"id"`
	Type       EventType        `json:"type"`
	DuelId     string           `json:"duelId"`
	Status     model.DuelStatus `json:"status"`
	OccurredAt time.Time        `json:"occurredAt"`
	Duel       model.Duel       `json:"duel"`
}

func (DuelEvent) GetEventTopicName() string {
	return EventsTopic
}

func newDuelEvent(eventType EventType, duel model.Duel, at time.Time) DuelEvent {
	return DuelEvent{
		Id:         uuid.New().String(),
		Type:       eventType,
		DuelId:     duel.Id,
		Status:     duel.Status,
		OccurredAt: at,
		Duel:       duel,
	}
}

func (e DuelEvent) GetEventKey() string {
	return e.DuelId
}

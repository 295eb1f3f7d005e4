package model

type DuelStatus string

const (
	DuelPending   DuelStatus = "PENDING"
	DuelAccepted  DuelStatus = "ACCEPTED"
	DuelCompleted DuelStatus = "COMPLETED"
	DuelCancelled DuelStatus = "CANCELLED"
)

func (s DuelStatus) Terminal() bool {
	return s == DuelCompleted || s == DuelCancelled
}

func (s DuelStatus) Valid() bool {
	switch s {
	case DuelPending, DuelAccepted, DuelCompleted, DuelCancelled:
		return true
	}
	return false
}

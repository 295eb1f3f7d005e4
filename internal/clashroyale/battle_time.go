package clashroyale

import (
	"fmt"
	"time"
)

const battleTimeLayout = "20060102T150405.000Z"

// ParseBattleTime reads the compact timestamp used in battle logs,
// e.g. 20240101T120000.000Z. RFC3339 is accepted as well.
func ParseBattleTime(value string) (time.Time, error) {
	if t, err := time.Parse(battleTimeLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised battle time %q", value)
	}
	return t.UTC(), nil
}

func FormatBattleTime(t time.Time) string {
	return t.UTC().Format(battleTimeLayout)
}

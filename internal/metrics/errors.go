// Package metrics computes per-game advanced statistics and the
// league-normalized efficiency ratings built on them.
package metrics

import (
	"errors"
	"fmt"
)

// ErrBaselineUnavailable is returned when PER or BPM is requested without a
// usable league baseline.
var ErrBaselineUnavailable = errors.New("league baseline unavailable")

// ErrMissingOpponent marks a player with no positional opponent in a game.
var ErrMissingOpponent = errors.New("no positional opponent")

// MissingOpponentError reports the player whose defensive numbers were skipped.
type MissingOpponentError struct {
	UploadID string
	Name     string
	Pos      int
}

func (e *MissingOpponentError) Error() string {
	return fmt.Sprintf("upload %s: player %s at position %d: %v", e.UploadID, e.Name, e.Pos, ErrMissingOpponent)
}

func (e *MissingOpponentError) Unwrap() error {
	return ErrMissingOpponent
}

// safeDiv returns 0 when the denominator is zero.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

package boxscore

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fortuna/courtside/internal/models"
)

// TwoPointers splits field goals into two-point attempts and makes.
func TwoPointers(fga, fgm, threepa, threepm int) (twoPA, twoPM int) {
	return fga - threepa, fgm - threepm
}

// FreeThrowsMade back-solves free throws from points and known makes.
func FreeThrowsMade(pts, twoPM, threePM int) int {
	ftm := pts - 2*twoPM - 3*threePM
	if ftm < 0 {
		return 0
	}
	return ftm
}

// EstimateFreeThrowAttempts draws an attempt count from a Poisson distribution
// centered on the makes implied by the shooter's percentage. The result is
// never below ftm.
func EstimateFreeThrowAttempts(ftm int, ftPerc float64, rng *rand.Rand) int {
	if ftm <= 0 {
		return 0
	}
	if ftPerc <= 0 || math.IsNaN(ftPerc) {
		ftPerc = models.DefaultFTPerc
	}

	mean := math.Round(float64(ftm) / (ftPerc / 100))
	if mean <= 0 || mean < float64(ftm) {
		return ftm
	}

	dist := distuv.Poisson{Lambda: mean, Src: rng}
	sample := int(dist.Rand())
	if sample < ftm {
		return ftm
	}
	return sample
}

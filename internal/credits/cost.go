package credits

import (
	"fmt"
	"math"

	"overdub/internal/services"
)

const (
	secondsPerCredit      = 10
	translationMultiplier = 1.5
	videoMultiplier       = 1.2
)

// Cost converts a media duration into a credit price. One credit buys ten
// seconds, rounded up; translation and video each apply a surcharge, and the
// final price is rounded up again with a floor of one credit.
func Cost(durationSeconds float64, hasTranslation, isVideo bool) (int, error) {
	if durationSeconds <= 0 {
		return 0, services.Wrap(services.ErrValidation, "", "compute cost",
			fmt.Sprintf("duration must be positive, got %f", durationSeconds), nil)
	}

	price := math.Ceil(durationSeconds / secondsPerCredit)
	if hasTranslation {
		price *= translationMultiplier
	}
	if isVideo {
		price *= videoMultiplier
	}
	cost := int(math.Ceil(price))
	if cost < 1 {
		cost = 1
	}
	return cost, nil
}

package accumulate

import (
	"math/rand"
	"time"

	"github.com/gregtusar/carry/pkg/expiry"
	"github.com/gregtusar/carry/pkg/models"
)

// GenerateSample produces a synthetic daily observation series for offline
// testing: a random-walk spot with a contango-biased basis and front-month
// expiries from the real calendar.
func GenerateSample(start, end time.Time, basePrice float64, rng *rand.Rand) []models.Observation {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	schedule := expiry.BuildSchedule(start, end)

	var observations []models.Observation
	price := basePrice
	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		price += rng.NormFloat64() * 0.02 * price
		if price < 10000 {
			price = 10000
		}

		basisPct := rng.NormFloat64()*0.01 + 0.015
		if basisPct < -0.01 {
			basisPct = -0.01
		}

		observations = append(observations, models.Observation{
			Date:          current,
			SpotPrice:     price,
			FuturesPrice:  price * (1 + basisPct),
			FuturesExpiry: expiry.FrontMonth(current, schedule),
		})
	}
	return observations
}

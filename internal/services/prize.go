package services

import (
	"fmt"
	"math/rand"
	"time"

	"goldtrio/internal/models"
)

// PrizeService performs the weighted draw over the configured prize tiers
// and mints coupon codes. It is stateless; invoking it once per winning
// session is the caller's responsibility.
type PrizeService struct {
	tiers []models.PrizeTier
}

// NewPrizeService creates a drawer over the given tiers.
func NewPrizeService(tiers []models.PrizeTier) *PrizeService {
	return &PrizeService{tiers: tiers}
}

// Draw picks a tier with probability proportional to its weight and mints a
// coupon valid through today plus the tier's validity window. Coupon codes
// are "<prefix>-<5 digits>"; the random suffix is not checked against
// previously issued codes, so codes are not globally unique.
func (s *PrizeService) Draw(today time.Time) models.PrizeResult {
	tier := s.pick()
	code := fmt.Sprintf("%s-%d", tier.Prefix, 10000+rand.Intn(90000))
	expiry := today.AddDate(0, 0, tier.ValidityDays).Format("2006/01/02")

	return models.PrizeResult{
		Name:   tier.Name,
		Code:   code,
		Expiry: expiry,
	}
}

// pick performs the weighted categorical draw. Weights need not sum to 1.
func (s *PrizeService) pick() models.PrizeTier {
	var total float64
	for _, t := range s.tiers {
		total += t.Weight
	}

	r := rand.Float64() * total
	for _, t := range s.tiers {
		r -= t.Weight
		if r < 0 {
			return t
		}
	}
	// Floating point accumulation can leave r at a hair above zero; the
	// last tier takes the remainder.
	return s.tiers[len(s.tiers)-1]
}

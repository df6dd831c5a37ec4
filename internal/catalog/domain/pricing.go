package domain

import (
	"sort"
	"time"

	"github.com/yoozak/yoozak-backend/pkg/money"
)

// PriceResolution is the effective price of an article and the promotion behind it
type PriceResolution struct {
	Price     money.Money
	Promotion *Promotion
}

// Resolve computes the effective price of an article at now.
//
// Liquidation articles always sell at base price. Otherwise the applicable
// promotion with the largest discount wins; ties go to the earliest start,
// then the lowest ID, so the result does not depend on input order.
func Resolve(a *Article, promos []Promotion, now time.Time) PriceResolution {
	if a.Phase == PhaseLiquidation {
		return PriceResolution{Price: a.BasePrice}
	}

	best := BestPromotion(promos, now)
	if best == nil {
		return PriceResolution{Price: a.BasePrice}
	}

	return PriceResolution{
		Price:     a.BasePrice.ApplyPercent(best.DiscountPercent),
		Promotion: best,
	}
}

// BestPromotion returns the winning promotion among those in force at now, or nil.
func BestPromotion(promos []Promotion, now time.Time) *Promotion {
	candidates := make([]*Promotion, 0, len(promos))
	for i := range promos {
		if promos[i].AppliesAt(now) && promos[i].DiscountPercent > 0 && promos[i].DiscountPercent < 100 {
			candidates = append(candidates, &promos[i])
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DiscountPercent != b.DiscountPercent {
			return a.DiscountPercent > b.DiscountPercent
		}
		if !a.StartsAt.Equal(b.StartsAt) {
			return a.StartsAt.Before(b.StartsAt)
		}
		return a.ID < b.ID
	})

	return candidates[0]
}

// NextBoundary returns the earliest promotion start or end strictly after now,
// or the zero time when none is pending.
func NextBoundary(promos []Promotion, now time.Time) time.Time {
	var next time.Time
	for _, p := range promos {
		if !p.IsActive {
			continue
		}
		for _, t := range []time.Time{p.StartsAt, p.EndsAt} {
			if t.After(now) && (next.IsZero() || t.Before(next)) {
				next = t
			}
		}
	}
	return next
}

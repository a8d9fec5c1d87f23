package strategy

import "signal_bot/internal/models"

// CheckOutcome — дошла ли цена до TP или SL.
func CheckOutcome(sig models.Signal, price float64) models.Outcome {
	switch sig.Direction {
	case models.SideBuy:
		if price >= sig.TP {
			return models.OutcomeWin
		}
		if price <= sig.SL {
			return models.OutcomeLoss
		}
	case models.SideSell:
		if price <= sig.TP {
			return models.OutcomeWin
		}
		if price >= sig.SL {
			return models.OutcomeLoss
		}
	}
	return models.OutcomePending
}

package health

import "github.com/e-gov/TARA-GovSSO-InProxy/pkg/allowlist"

// RefreshSource exposes the outcome of the last allowlist refresh.
type RefreshSource interface {
	Health() allowlist.Health
}

// RefreshIndicator is UP when the last allowlist fetch from the admin service
// succeeded, DOWN when it failed and UNKNOWN before the first attempt.
func RefreshIndicator(source RefreshSource) Indicator {
	return IndicatorFunc(func() Result {
		switch source.Health() {
		case allowlist.HealthUp:
			return Result{Status: StatusUp}
		case allowlist.HealthDown:
			return Result{Status: StatusDown}
		default:
			return Result{Status: StatusUnknown}
		}
	})
}

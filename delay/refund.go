package delay

// Default season ticket pricing used when none is configured.
const (
	DefaultAnnualPrice     = 7437.92
	DefaultJourneysPerYear = 464
)

// PerJourneyPrice splits an annual season ticket over the journeys it
// covers. Zero journeys yields zero so a bad config cannot divide by
// zero.
func PerJourneyPrice(annualPrice float64, journeysPerYear int) float64 {
	if journeysPerYear <= 0 {
		return 0
	}
	return annualPrice / float64(journeysPerYear)
}

// Refund maps a delay onto the delay repay compensation tiers and
// returns the estimated amount with its tier label. Tiers are checked
// highest first so exactly one applies; a cancelled service pays the
// 50% tier regardless of the computed minutes.
func Refund(minutes int, cancelled bool, perJourneyPrice float64) (float64, string) {
	switch {
	case cancelled:
		return perJourneyPrice * 0.5, "50%"
	case minutes >= 120:
		return perJourneyPrice * 2, "200%"
	case minutes >= 60:
		return perJourneyPrice, "100%"
	case minutes >= 30:
		return perJourneyPrice * 0.5, "50%"
	case minutes >= 15:
		return perJourneyPrice * 0.25, "25%"
	default:
		return 0, "0%"
	}
}

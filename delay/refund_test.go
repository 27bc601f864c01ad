package delay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefundTiers(t *testing.T) {
	assert := assert.New(t)
	price := 16.0

	cases := []struct {
		minutes   int
		cancelled bool
		amount    float64
		label     string
	}{
		{0, false, 0, "0%"},
		{14, false, 0, "0%"},
		{15, false, 4, "25%"},
		{29, false, 4, "25%"},
		{30, false, 8, "50%"},
		{60, false, 16, "100%"},
		{119, false, 16, "100%"},
		{120, false, 32, "200%"},
		{300, false, 32, "200%"},
	}
	for _, c := range cases {
		amount, label := Refund(c.minutes, c.cancelled, price)
		assert.Equal(c.amount, amount)
		assert.Equal(c.label, label)
	}
}

func TestRefundCancelledWinsOverMinutes(t *testing.T) {
	assert := assert.New(t)

	// cancellation pays the 50% tier no matter what minutes says
	amount, label := Refund(300, true, 16.0)
	assert.Equal(8.0, amount)
	assert.Equal("50%", label)
}

func TestPerJourneyPrice(t *testing.T) {
	assert := assert.New(t)
	assert.InDelta(16.03, PerJourneyPrice(DefaultAnnualPrice, DefaultJourneysPerYear), 0.01)
	assert.Equal(0.0, PerJourneyPrice(100, 0))
}

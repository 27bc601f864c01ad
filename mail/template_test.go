package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refundmyrail/refundmyrail/report"
)

func TestRender(t *testing.T) {
	assert := assert.New(t)

	outcomes := []report.Outcome{
		{
			Date:         "2025-03-10",
			Leg:          report.LegOutbound,
			SchedDep:     "0730",
			SchedArr:     "0745",
			ActualArr:    "0800",
			Minutes:      15,
			RefundAmount: 4.0,
			RefundLabel:  "25%",
			TOC:          "GW",
		},
		{
			Date:         "2025-03-12",
			Leg:          report.LegInbound,
			SchedDep:     "1715",
			SchedArr:     "1800",
			Cancelled:    true,
			RefundAmount: 8.0,
			RefundLabel:  "50%",
			TOC:          "GW",
		},
	}

	body, err := Render(outcomes)
	require.NoError(t, err)
	html := string(body)

	assert.Contains(html, "&pound;12.00")
	assert.Contains(html, "&pound;4.00 (25%)")
	assert.Contains(html, "&pound;8.00 (50%)")
	assert.Contains(html, "07:30")
	assert.Contains(html, "08:00")
	assert.Contains(html, "Cancelled")
	assert.Contains(html, claimLinks["GW"])
}

func TestClaimLink(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(claimLinks["NE"], ClaimLink("NE"))
	assert.Equal("https://www.google.com/search?q=ZZ+delay+repay", ClaimLink("ZZ"))
}

func TestFormatTime(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("07:30", FormatTime("0730"))
	assert.Equal("23:59", FormatTime("2359"))
	assert.Equal("--:--", FormatTime(""))
	assert.Equal("--:--", FormatTime("730"))
}

func TestTotal(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0.0, Total(nil))
	assert.InDelta(12.5, Total([]report.Outcome{
		{RefundAmount: 4.5},
		{RefundAmount: 8.0},
	}), 0.001)
}

func TestNewSenderFallsBackToMock(t *testing.T) {
	assert := assert.New(t)

	_, ok := NewSender(nil).(*mockSender)
	assert.True(ok)
	_, ok = NewSender(&SMTPConfig{Host: "smtp.example.com"}).(*mockSender)
	assert.True(ok)
	_, ok = NewSender(&SMTPConfig{Host: "smtp.example.com", User: "u"}).(*smtpSender)
	assert.True(ok)
}

package mail

import (
	"bytes"
	"html/template"
	"net/url"

	"github.com/pkg/errors"

	"github.com/refundmyrail/refundmyrail/report"
)

// claimLinks maps operator codes to their delay repay claim pages.
var claimLinks = map[string]string{
	"GW": "https://www.gwr.com/help-and-support/refunds-and-compensation/delay-repay",
	"SW": "https://www.southwesternrailway.com/contact-and-help/refunds-and-compensation/delay-repay",
	"VT": "https://www.avantiwestcoast.co.uk/help-and-support/delay-repay",
	"SE": "https://www.southeasternrailway.co.uk/help-and-contact/refunds-and-compensation-claims/delay-repay",
	"SN": "https://www.southernrailway.com/help-and-support/delay-repay",
	"TL": "https://www.thameslinkrailway.com/help-and-support/delay-repay",
	"GN": "https://www.greatnorthernrail.com/help-and-support/delay-repay",
	"KX": "https://www.gatwickexpress.com/help-and-support/delay-repay",
	"LM": "https://www.londonnorthwesternrailway.co.uk/about-us/delay-repay",
	"EM": "https://www.eastmidlandsrailway.co.uk/help-manage/delay-repay",
	"NE": "https://www.lner.co.uk/support/delay-repay/",
	"NT": "https://www.northernrailway.co.uk/help/delay-repay",
	"TP": "https://www.tpexpress.co.uk/help/delay-repay-compensation",
	"XC": "https://www.crosscountrytrains.co.uk/customer-service/delay-repay",
	"CC": "https://www.c2c-online.co.uk/help-feedback/delay-repay/",
	"CH": "https://www.chilternrailways.co.uk/delayrepay15",
	"GA": "https://www.greateranglia.co.uk/about-us/our-performance/delay-repay",
	"AW": "https://tfw.wales/help-and-contact/rail/delay-repay",
	"SR": "https://www.scotrail.co.uk/plan-your-journey/refunds-and-compensation/delay-repay",
	"GX": "https://www.gatwickexpress.com/help-and-support/delay-repay",
}

// ClaimLink returns the claim page for an operator code, falling back
// to a web search for codes the table does not know.
func ClaimLink(toc string) string {
	if link, ok := claimLinks[toc]; ok {
		return link
	}
	return "https://www.google.com/search?q=" + url.QueryEscape(toc+" delay repay")
}

// FormatTime renders an HHMM rail time as HH:MM.
func FormatTime(t string) string {
	if len(t) != 4 {
		return "--:--"
	}
	return t[:2] + ":" + t[2:]
}

// Total sums the estimated refunds across a report.
func Total(outcomes []report.Outcome) float64 {
	var total float64
	for _, o := range outcomes {
		total += o.RefundAmount
	}
	return total
}

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"fmtTime":   FormatTime,
	"claimLink": ClaimLink,
}).Parse(reportHTML))

type reportData struct {
	Outcomes []report.Outcome
	Total    float64
}

// Render produces the HTML body for a weekly report.
func Render(outcomes []report.Outcome) ([]byte, error) {
	var buf bytes.Buffer
	err := reportTmpl.Execute(&buf, reportData{
		Outcomes: outcomes,
		Total:    Total(outcomes),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute report template")
	}
	return buf.Bytes(), nil
}

const reportHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Weekly Refund Report</title>
</head>
<body style="font-family: sans-serif; background-color: #f8fafc; color: #334155; margin: 0; padding: 24px;">
<div style="max-width: 720px; margin: 0 auto; background-color: #ffffff; border-radius: 12px; overflow: hidden;">
  <div style="background-color: #10b981; padding: 24px; text-align: center;">
    <h1 style="margin: 0; color: #ffffff; font-size: 22px;">RefundMyRail</h1>
    <p style="margin: 6px 0 0; color: #ecfdf5;">Weekly Delay Report</p>
  </div>
  <div style="padding: 24px;">
    <div style="background-color: #10b981; color: #ffffff; padding: 24px; border-radius: 8px; text-align: center; margin-bottom: 24px;">
      <div style="font-size: 13px; text-transform: uppercase;">Potential Refund</div>
      <div style="font-size: 40px; font-weight: 700;">&pound;{{printf "%.2f" .Total}}</div>
      <div style="font-size: 11px;">*Estimated from your season ticket price</div>
    </div>
    <table style="width: 100%; border-collapse: collapse; font-size: 14px;">
      <thead>
        <tr style="background-color: #f1f5f9; text-align: left;">
          <th style="padding: 10px;">Date</th>
          <th style="padding: 10px;">Operator</th>
          <th style="padding: 10px;">Dep</th>
          <th style="padding: 10px;">Arr</th>
          <th style="padding: 10px;">Delay</th>
          <th style="padding: 10px;">Refund</th>
          <th style="padding: 10px;">Claim</th>
        </tr>
      </thead>
      <tbody>
        {{range .Outcomes}}
        <tr style="border-bottom: 1px solid #e2e8f0;">
          <td style="padding: 10px;">{{.Date}}</td>
          <td style="padding: 10px;">{{.TOC}}</td>
          <td style="padding: 10px; font-family: monospace;">{{fmtTime .SchedDep}}</td>
          <td style="padding: 10px; font-family: monospace;">{{if .Cancelled}}Cancelled{{else}}{{fmtTime .ActualArr}}{{end}}</td>
          <td style="padding: 10px; font-weight: 700;">{{if .Cancelled}}Cancelled{{else}}{{.Minutes}}m{{end}}</td>
          <td style="padding: 10px; color: #10b981; font-weight: 700;">&pound;{{printf "%.2f" .RefundAmount}} ({{.RefundLabel}})</td>
          <td style="padding: 10px;"><a href="{{claimLink .TOC}}" target="_blank">Claim &rarr;</a></td>
        </tr>
        {{end}}
      </tbody>
    </table>
    <p style="margin-top: 24px; font-size: 12px; color: #94a3b8; text-align: center;">
      This is an automated report. Please verify with official operator data before claiming.
    </p>
  </div>
  <div style="background-color: #f8fafc; padding: 24px; border-top: 1px solid #e2e8f0; text-align: center; font-size: 12px; color: #cbd5e1;">
    <p style="margin: 4px 0;">Contains National Rail data. Source: Rail Delivery Group.</p>
    <p style="margin: 4px 0;">RefundMyRail is an independent tool and is not affiliated with National Rail.</p>
  </div>
</div>
</body>
</html>
`

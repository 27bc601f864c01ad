package report

import "time"

const dateLayout = "2006-01-02"

// WorkingWeek returns Monday through Friday of the week containing now.
// A Sunday counts as the end of the previous week, matching a report
// run at the weekend covering the commute just finished.
func WorkingWeek(now time.Time) []string {
	offset := int(now.Weekday()) - int(time.Monday)
	if now.Weekday() == time.Sunday {
		offset = 6
	}
	monday := now.AddDate(0, 0, -offset)

	days := make([]string, 5)
	for i := range days {
		days[i] = monday.AddDate(0, 0, i).Format(dateLayout)
	}
	return days
}

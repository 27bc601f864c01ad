package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkingWeek(t *testing.T) {
	assert := assert.New(t)

	week := []string{"2025-03-10", "2025-03-11", "2025-03-12", "2025-03-13", "2025-03-14"}

	// midweek
	wednesday := time.Date(2025, 3, 12, 14, 30, 0, 0, time.UTC)
	assert.Equal(week, WorkingWeek(wednesday))

	// Monday is already the start of the week
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(week, WorkingWeek(monday))

	// Sunday belongs to the week just finished, not the one starting
	sunday := time.Date(2025, 3, 16, 9, 0, 0, 0, time.UTC)
	assert.Equal(week, WorkingWeek(sunday))

	nextMonday := time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC)
	assert.Equal("2025-03-17", WorkingWeek(nextMonday)[0])
}

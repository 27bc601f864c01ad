package delay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		name      string
		scheduled string
		actual    string
		minutes   int
		cancelled bool
	}{
		{"fifteen late", "0700", "0715", 15, false},
		{"on time", "0700", "0700", 0, false},
		{"midnight rollover", "2355", "0010", 15, false},
		{"early clamps to zero", "0715", "0700", 0, false},
		{"two hours late", "0700", "0900", 120, false},
		{"malformed scheduled", "07", "0715", 0, false},
		{"malformed actual", "0700", "07:15", 0, false},
	}

	for _, c := range cases {
		res := Compute(c.scheduled, c.actual)
		assert.Equal(c.minutes, res.Minutes, c.name)
		assert.Equal(c.cancelled, res.Cancelled, c.name)
	}
}

func TestComputeCancelled(t *testing.T) {
	assert := assert.New(t)
	res := Compute("0700", "")
	assert.True(res.Cancelled)
}

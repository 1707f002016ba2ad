package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRoundTrip(t *testing.T) {
	d := NewDate(2025, time.March, 9)
	assert.Equal(t, "2025-03-09", d.String())

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-09"`, string(data))

	var parsed Date
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, d, parsed)
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("JST", 9*3600)
	// 08:30 JST on March 10 is still March 9 in UTC
	ts := time.Date(2025, time.March, 10, 8, 30, 0, 0, loc)
	assert.Equal(t, "2025-03-09", DateOf(ts).String())
}

func TestDateUnmarshalNull(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"not-a-date"`), &d))
}

func TestDateAddDays(t *testing.T) {
	d := NewDate(2025, time.February, 28)
	assert.Equal(t, "2025-03-01", d.AddDays(1).String())
	assert.Equal(t, "2025-02-21", d.AddDays(-7).String())
}

func TestEngagementRate(t *testing.T) {
	tests := []struct {
		name                           string
		likes, comments, saved, shares int64
		reach                          int64
		want                           float64
	}{
		{"typical", 120, 30, 10, 5, 3300, 5.0},
		{"rounded to two decimals", 10, 0, 0, 0, 300, 3.33},
		{"zero reach", 100, 50, 0, 0, 0, 0.0},
		{"no interactions", 0, 0, 0, 0, 1000, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EngagementRate(tt.likes, tt.comments, tt.saved, tt.shares, tt.reach)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestViewRate(t *testing.T) {
	rate := ViewRate(4500, 3000)
	require.NotNil(t, rate)
	assert.Equal(t, 150.0, *rate)

	assert.Nil(t, ViewRate(0, 3000), "zero views is undefined, not 0%")
	assert.Nil(t, ViewRate(4500, 0))
}

package models

import "math"

// EngagementRate returns the engagement percentage for a post,
// rounded to two decimals. Zero reach yields 0.0 rather than an error
// so that partial insight responses still produce a row.
func EngagementRate(likes, comments, saved, shares, reach int64) float64 {
	if reach <= 0 {
		return 0.0
	}
	rate := 100 * float64(likes+comments+saved+shares) / float64(reach)
	return Round2(rate)
}

// ViewRate returns the view percentage for a post, or nil when reach
// or views is missing and the ratio is undefined.
func ViewRate(views, reach int64) *float64 {
	if reach <= 0 || views <= 0 {
		return nil
	}
	rate := Round2(100 * float64(views) / float64(reach))
	return &rate
}

// Round2 rounds to two decimal places, the precision all derived
// rates are stored with.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}


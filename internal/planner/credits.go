package planner

import (
	"math"
	"strings"

	"showrunner/internal/store"
)

// CreditEstimate is the launch-time cost projection for a series. Credits
// are estimated and recorded for display; nothing here charges them.
type CreditEstimate struct {
	PerEpisode       float64
	EstimatedMonthly float64
}

// EstimateCredits computes per-episode credit consumption from the series
// configuration: longer stories, heavier art styles, and premium effects
// each add to the base rate.
func EstimateCredits(series *store.Series) float64 {
	base := 10.0
	if series.ScriptPreferences != nil && series.ScriptPreferences.StoryLength == "45_60" {
		base += 5.0
	}
	style := ""
	if series.ArtStyle != nil {
		style = series.ArtStyle.Style
	}
	switch style {
	case "cinematic_ai", "anime":
		base += 8.0
	case "realistic", "cartoon", "comic":
		base += 4.0
	}
	for _, effect := range series.VisualEffects {
		if effect.Enabled && effect.IsPremium {
			base += 5.0
		}
	}
	return math.Round(base*10) / 10
}

// Estimate pairs the per-episode rate with a monthly projection: seven
// episodes for daily schedules, twelve otherwise.
func Estimate(series *store.Series) CreditEstimate {
	per := EstimateCredits(series)
	frequency := "daily"
	if series.Schedule != nil && strings.TrimSpace(series.Schedule.Frequency) != "" {
		frequency = series.Schedule.Frequency
	}
	multiplier := 12.0
	if strings.EqualFold(frequency, "daily") {
		multiplier = 7.0
	}
	return CreditEstimate{PerEpisode: per, EstimatedMonthly: per * multiplier}
}

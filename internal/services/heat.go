package services

import (
	"math"

	"dealdrop/internal/domain"
)

type HeatConfig struct {
	HalfLifeHours float64
	ViewWeight    float64
	CommentWeight float64
}

func DefaultHeatConfig() HeatConfig {
	return HeatConfig{HalfLifeHours: 12, ViewWeight: 0.1, CommentWeight: 0.02}
}

// HeatScore is the decaying popularity score ordering the Hot view.
// Strictly increasing in net votes, strictly decreasing in age; views
// and comments add a small tie-break bonus so raw traffic never
// outweighs votes. Total for any input: no log of zero, no negative
// domain, negative ages clamp to zero.
func HeatScore(s domain.EngagementSnapshot, ageHours float64, cfg HeatConfig) float64 {
	if ageHours < 0 {
		ageHours = 0
	}
	if cfg.HalfLifeHours <= 0 {
		cfg.HalfLifeHours = 12
	}

	net := float64(s.NetScore())
	magnitude := math.Log10(math.Abs(net) + 1)
	var sign float64
	switch {
	case net > 0:
		sign = 1
	case net < 0:
		sign = -1
	}

	score := sign*magnitude - ageHours/cfg.HalfLifeHours
	score += math.Log10(1+float64(s.ViewCount)) * cfg.ViewWeight
	score += float64(s.CommentCount) * cfg.CommentWeight
	return score
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankingScoreIgnoresCleanups(t *testing.T) {
	busyCleaner := UserProfile{ReportsCount: 5, CleanupsCount: 10}
	reporter := UserProfile{ReportsCount: 6}

	assert.Greater(t, busyCleaner.TotalImpact(), reporter.TotalImpact())
	assert.Less(t, busyCleaner.RankingScore(), reporter.RankingScore())
}

func TestParseReportStatus(t *testing.T) {
	for _, raw := range []string{"reported", "in_progress", "cleaned"} {
		s, err := ParseReportStatus(raw)
		assert.NoError(t, err)
		assert.Equal(t, raw, string(s))
	}
	_, err := ParseReportStatus("archived")
	assert.Error(t, err)
}

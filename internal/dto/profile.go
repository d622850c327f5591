package dto

import "time"

// UpdateProfileRequest is the payload for editing the caller's profile.
type UpdateProfileRequest struct {
	DisplayName    string  `json:"displayName" form:"displayName"`
	ProfileImageID *string `json:"profileImageId,omitempty" form:"profileImageId"`
}

// ProfileSnapshot is the profile screen model. Persisted is false for a synthesized default.
type ProfileSnapshot struct {
	ID              string    `json:"id,omitempty"`
	UserID          string    `json:"userId"`
	DisplayName     string    `json:"displayName"`
	ProfileImageID  *string   `json:"profileImageId"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	ReportsCount    int       `json:"reportsCount"`
	CleanupsCount   int       `json:"cleanupsCount"`
	TotalImpact     int       `json:"totalImpact"`
	LeaderboardRank int       `json:"leaderboardRank"`
	JoinedAt        time.Time `json:"joinedAt"`
	Persisted       bool      `json:"persisted"`
}

// LeaderboardEntry is one ranked row. RankingScore orders the board; TotalImpact is display only.
type LeaderboardEntry struct {
	Rank            int     `json:"rank"`
	UserID          string  `json:"userId"`
	DisplayName     string  `json:"displayName"`
	ProfileImageURL *string `json:"profileImageUrl"`
	ReportsCount    int     `json:"reportsCount"`
	CleanupsCount   int     `json:"cleanupsCount"`
	RankingScore    int     `json:"rankingScore"`
	TotalImpact     int     `json:"totalImpact"`
}

package models

import "time"

// UserProfile aggregates a user's display identity and activity counters.
// Profiles are created lazily on the first report submission or profile update.
type UserProfile struct {
	Seq            int64     `db:"seq" json:"-"`
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"userId"`
	DisplayName    string    `db:"display_name" json:"displayName"`
	ProfileImageID *string   `db:"profile_image_id" json:"profileImageId"`
	ReportsCount   int       `db:"reports_count" json:"reportsCount"`
	CleanupsCount  int       `db:"cleanups_count" json:"cleanupsCount"`
	JoinedAt       time.Time `db:"joined_at" json:"joinedAt"`
}

// RankingScore is the leaderboard sort key. Only reports count.
func (p UserProfile) RankingScore() int {
	return p.ReportsCount
}

// TotalImpact is the combined activity shown on the profile screen. It never drives ranking.
func (p UserProfile) TotalImpact() int {
	return p.ReportsCount + p.CleanupsCount
}

// ProfileSeed holds the values used when a profile is materialized for the first time.
type ProfileSeed struct {
	ID             string
	UserID         string
	DisplayName    string
	ProfileImageID *string
	JoinedAt       time.Time
}

// ProfileIdentityPatch updates the caller-editable part of a profile.
type ProfileIdentityPatch struct {
	UserID         string
	DisplayName    string
	ProfileImageID *string
}

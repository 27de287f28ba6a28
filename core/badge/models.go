package badge

import "time"

// DefaultName is the leaderboard decoration used when an account has not
// earned any badge yet.
const DefaultName = "Rising Star"

// Badge is a decorative achievement owned by an account. It has no behavioral
// effect beyond display; the most recently earned one decorates the leaderboard.
type Badge struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	BgColor   string    `json:"bg_color"`
	AccountID string    `json:"-"`
	EarnedAt  time.Time `json:"earned_at"` // UTC
}

// Package shadow holds the per-session fake domain model backing the decoy
// console. Nothing in here is real: mutations only ever touch the probing
// visitor's own in-memory copy.
package shadow

import "time"

// User is a fake account row shown in the decoy user table.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Ad is a fake advertisement placement row.
type Ad struct {
	ID      int64  `json:"id"`
	Slot    string `json:"slot"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// Home is the fake site-front configuration.
type Home struct {
	Title string `json:"title"`
}

// Theme is the fake appearance setting, constrained to ValidThemes.
type Theme struct {
	Current string `json:"current"`
}

// QueryResult is the canned tabular answer to the fake database console.
type QueryResult struct {
	Columns  []string   `json:"columns"`
	Rows     [][]string `json:"rows"`
	RowCount int        `json:"row_count"`
}

// DefaultTheme is applied at seed time and whenever an unrecognized theme
// value is submitted.
const DefaultTheme = "classic"

// ValidThemes is the allow-list for theme updates.
var ValidThemes = []string{"classic", "ocean", "sunset"}

package domain

import "time"

// ContentVisibility classifies who may fetch a content record.
type ContentVisibility string

const (
	ContentVisibilityFree    ContentVisibility = "FREE"
	ContentVisibilityPremium ContentVisibility = "PREMIUM"
)

// ContentRecord is the catalog entry for one piece of content.
type ContentRecord struct {
	ID         string
	Title      string
	Locator    string
	Visibility ContentVisibility
	// WindowStart/WindowEnd bound time-boxed live content. Nil means the
	// record is not time-boxed on that side.
	WindowStart *time.Time
	WindowEnd   *time.Time
	// Version is monotonic, bumped by the store on every publish.
	Version   int64
	UpdatedAt time.Time
}

// WindowContains reports whether now falls inside the validity window.
func (r *ContentRecord) WindowContains(now time.Time) bool {
	if r.WindowStart != nil && now.Before(*r.WindowStart) {
		return false
	}
	if r.WindowEnd != nil && now.After(*r.WindowEnd) {
		return false
	}
	return true
}

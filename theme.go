package buildlogs

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so the viewer
// automatically matches any color scheme. A negative index means no color.
type Theme struct {
	Text      int // Log line text
	LineNo    int // Line number gutter
	Error     int // Errors, failed badge
	Success   int // Success badge, completed status
	Warning   int // In-progress badges
	Muted     int // Status bar, placeholders
	Accent    int // Header, deployment id
	BadgeText int // Foreground of status badges
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		Text:      -1,
		LineNo:    8,
		Error:     1,
		Success:   2,
		Warning:   3,
		Muted:     8,
		Accent:    5,
		BadgeText: 0,
	}
}

package bubbletea

// Wrap exports wrap for testing.
func Wrap(line string, width int) []string {
	return wrap(line, width)
}

// Truncate exports truncate for testing.
func Truncate(line string, width int) string {
	return truncate(line, width)
}

// Sanitize exports sanitize for testing.
func Sanitize(line string) string {
	return sanitize(line)
}

// RenderContent exports renderContent for testing.
func RenderContent(m Model) string {
	return m.renderContent()
}

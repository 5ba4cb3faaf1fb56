package schema

// ValidateName checks if a table or field name is a plain SQLite identifier.
// Names are spliced into statements unquoted, so nothing else is accepted.
func ValidateName(name string) bool {
	if len(name) == 0 || len(name) > 100 {
		return false
	}
	// First character must be a letter or underscore
	first := name[0]
	if (first < 'a' || first > 'z') && (first < 'A' || first > 'Z') && first != '_' {
		return false
	}
	// Subsequent characters can be letters, digits, or underscores
	for i := 1; i < len(name); i++ {
		c := name[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

package profile

import "fmt"

const maxNameLen = 64

// ValidateName rejects profile names that would be unsafe as a directory
// name. Lowercase letters, digits, '-' and '_' only, at most 64
// characters.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("profile name is empty")
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("profile name %q exceeds %d characters", name, maxNameLen)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("profile name %q contains %q; allowed: a-z, 0-9, '-', '_'", name, r)
		}
	}
	return nil
}

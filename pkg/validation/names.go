package validation

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	MaxLabelLength = 256
	MaxPropertyKey = 100
	MaxProperties  = 100

	labelPattern   = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	propKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ValidateLabel checks a node label or edge type. An empty label is allowed
// only when optional is set.
func ValidateLabel(label string, optional bool) error {
	if label == "" {
		if optional {
			return nil
		}
		return errors.New("label cannot be empty")
	}
	if len(label) > MaxLabelLength {
		return fmt.Errorf("label %q exceeds maximum length of %d characters", label, MaxLabelLength)
	}
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("label %q contains invalid characters (only alphanumeric and underscore allowed)", label)
	}
	return nil
}

// ValidatePropertyKey checks a property key
func ValidatePropertyKey(key string) error {
	if key == "" {
		return errors.New("property key cannot be empty")
	}
	if len(key) > MaxPropertyKey {
		return fmt.Errorf("property key %q exceeds maximum length of %d characters", key, MaxPropertyKey)
	}
	if !propKeyPattern.MatchString(key) {
		return fmt.Errorf("property key %q is invalid (must start with letter or underscore, followed by alphanumeric or underscore)", key)
	}
	return nil
}

// ValidatePropertyCount rejects property maps larger than MaxProperties
func ValidatePropertyCount(n int) error {
	if n > MaxProperties {
		return fmt.Errorf("maximum %d properties allowed, got %d", MaxProperties, n)
	}
	return nil
}

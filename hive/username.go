package hive

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 16
)

// usernameSegmentPattern matches one dot-separated segment of an account
// name: starts with a letter, ends with a letter or digit, dashes allowed in
// between.
var usernameSegmentPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$`)

// ValidateUsername enforces the blockchain's account-name rules, so an
// invalid name is rejected before any payment is taken for it.
func ValidateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return errors.Errorf("username must be %d to %d characters",
			minUsernameLength, maxUsernameLength)
	}
	for _, segment := range strings.Split(username, ".") {
		if len(segment) < minUsernameLength {
			return errors.Errorf("each segment of a username must be at least %d characters",
				minUsernameLength)
		}
		if !usernameSegmentPattern.MatchString(segment) {
			return errors.New("username may contain lowercase letters, digits, " +
				"dashes, and dots; each segment must start with a letter and " +
				"end with a letter or digit")
		}
	}
	return nil
}

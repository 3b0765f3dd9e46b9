// Package correlation links gateway payments to local subscriptions through
// the token embedded in the payment description at checkout.
package correlation

import (
	"errors"
	"regexp"
)

var ErrNoToken = errors.New("subscription_id not found in description")

var tokenPattern = regexp.MustCompile(`subscription_id=([\w-]+)`)

// Extract returns the first subscription id embedded in description.
func Extract(description string) (string, error) {
	m := tokenPattern.FindStringSubmatch(description)
	if m == nil {
		return "", ErrNoToken
	}
	return m[1], nil
}

package services

import "regexp"

// emailPattern is the syntactic shape a participant identity must have.
// Identities are not accounts; this is a structural check only, and no
// normalization (trimming, lowercasing) is applied.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9_.+-]+@[A-Za-z0-9-]+\.[A-Za-z0-9-.]+$`)

// ValidEmail reports whether s matches the identity grammar. Blank input is
// rejected by callers as a missing field before this check runs.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

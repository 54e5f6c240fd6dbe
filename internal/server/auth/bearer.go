package auth

import (
	"strings"

	"github.com/dmitrijs2005/diagrams/internal/common"
)

// BearerToken extracts the token from an Authorization header value of the
// form "Bearer <token>". The scheme is matched case-insensitively. Anything
// else yields common.ErrNotAuthenticated.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", common.ErrNotAuthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", common.ErrNotAuthenticated
	}
	return token, nil
}

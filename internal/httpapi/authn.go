package httpapi

import (
	"errors"
	"strings"
)

const (
	authHeader   = "Authorization"
	bearerScheme = "Bearer"
)

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	scheme, rest := header, ""
	if i := strings.IndexAny(header, " \t"); i >= 0 {
		scheme, rest = header[:i], header[i+1:]
	}
	if !strings.EqualFold(scheme, bearerScheme) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(rest)
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

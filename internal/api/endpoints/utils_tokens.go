package endpoints

import (
	"net/http"
	"strings"
)

func ExtractTokenFromHeaders(r *http.Request) string {
	tokenString := r.Header.Get("Authorization")

	if tokenString == "" {
		return ""
	}

	return strings.TrimPrefix(tokenString, "Bearer ")
}

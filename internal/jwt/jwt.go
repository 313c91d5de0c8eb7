// Package jwt validates access tokens issued by the platform's auth
// service. Token issuance and session lifecycle live outside this
// repository; the chat engine only needs to recover the participant id and
// role from a presented token.
package jwt

import (
	"fmt"

	"automate-chat/internal/env"

	"github.com/golang-jwt/jwt"
)

type Role int

const (
	RoleCustomer Role = iota
	RoleWorkshop
)

var RoleSecrets = map[Role]string{}

func init() {
	RoleSecrets[RoleCustomer] = env.Get(env.CustomerSecret)
	RoleSecrets[RoleWorkshop] = env.Get(env.WorkshopSecret)
}

// Tokens carry a trailing role character so a customer token can never be
// replayed against workshop endpoints even if the secrets match.
func expectedRoleChar(role Role) string {
	switch role {
	case RoleCustomer:
		return "1"
	case RoleWorkshop:
		return "2"
	}
	return ""
}

func RoleName(role Role) string {
	switch role {
	case RoleCustomer:
		return "customer"
	case RoleWorkshop:
		return "workshop"
	}
	return ""
}

func RoleFromName(name string) (Role, error) {
	switch name {
	case "customer":
		return RoleCustomer, nil
	case "workshop":
		return RoleWorkshop, nil
	}
	return 0, fmt.Errorf("unknown role %q", name)
}

// ParseToken validates an access token for the given role and returns its
// claims.
func ParseToken(tokenString string, role Role) (jwt.MapClaims, error) {
	if len(tokenString) == 0 {
		return nil, fmt.Errorf("token string is empty")
	}

	if tokenString[len(tokenString)-1:] != expectedRoleChar(role) {
		return nil, fmt.Errorf("invalid role character in token")
	}
	tokenString = tokenString[:len(tokenString)-1] // Remove role char

	secret, ok := RoleSecrets[role]
	if !ok {
		return nil, fmt.Errorf("invalid role specified")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid - unauthorized")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims of unauthorized type")
	}

	return claims, nil
}

// Identity is the participant identity recovered from a token.
type Identity struct {
	ParticipantID string
	Role          string
}

// ParseIdentity tries each known role in turn and returns the matching
// identity.
func ParseIdentity(tokenString string) (Identity, error) {
	for _, role := range []Role{RoleCustomer, RoleWorkshop} {
		claims, err := ParseToken(tokenString, role)
		if err != nil {
			continue
		}
		id, _ := claims["id"].(string)
		if id == "" {
			return Identity{}, fmt.Errorf("token missing participant id")
		}
		return Identity{ParticipantID: id, Role: RoleName(role)}, nil
	}
	return Identity{}, fmt.Errorf("token does not match any role")
}

// Package access resolves who may run privileged school operations.
package access

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Roles
const (
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"
	RoleTeacher        = "teacher:"
	RoleAccountant     = "staff:accountant"
)

var (
	ErrAccessDenied = errors.New("access denied")

	AdminRoles = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal}
	AllRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal, RoleTeacher, RoleAccountant}
)

// Principal is an already authenticated caller.
type Principal struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func (p Principal) RoleStartsWith(prefix string) bool {
	for _, role := range p.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (p Principal) IsAdmin() bool { return p.RoleStartsWith(RoleAdmin) }

func (p Principal) HasAnyRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Authorizer decides whether a principal, presenting a secret, may run a privileged operation.
type Authorizer interface {
	Authorize(ctx context.Context, p Principal, secret string) error
}

// SecretAuthorizer grants access to admins that present the operation secret.
// An empty hash denies everyone.
type SecretAuthorizer struct {
	hash []byte
}

func NewSecretAuthorizer(hash string) *SecretAuthorizer {
	return &SecretAuthorizer{hash: []byte(hash)}
}

func (a *SecretAuthorizer) Authorize(ctx context.Context, p Principal, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(a.hash) == 0 || secret == "" || !p.IsAdmin() {
		return ErrAccessDenied
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(secret)); err != nil {
		return ErrAccessDenied
	}
	return nil
}

// HashSecret returns the bcrypt hash to configure a SecretAuthorizer with.
func HashSecret(secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("secret cannot be blank")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretAuthorizer_Authorize(t *testing.T) {
	hash, err := HashSecret("s3cret!")
	require.NoError(t, err)

	admin := Principal{ID: "1", Username: "principal", Roles: []string{RoleAdminPrincipal}}
	teacher := Principal{ID: "2", Username: "teacher", Roles: []string{RoleTeacher}}

	tests := []struct {
		name    string
		hash    string
		p       Principal
		secret  string
		wantErr error
	}{
		{name: "admin with secret", hash: hash, p: admin, secret: "s3cret!"},
		{name: "wrong secret", hash: hash, p: admin, secret: "nope", wantErr: ErrAccessDenied},
		{name: "blank secret", hash: hash, p: admin, secret: "", wantErr: ErrAccessDenied},
		{name: "not an admin", hash: hash, p: teacher, secret: "s3cret!", wantErr: ErrAccessDenied},
		{name: "no hash configured", hash: "", p: admin, secret: "s3cret!", wantErr: ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSecretAuthorizer(tt.hash).Authorize(context.Background(), tt.p, tt.secret)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestSecretAuthorizer_CancelledContext(t *testing.T) {
	hash, err := HashSecret("s3cret!")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewSecretAuthorizer(hash).Authorize(ctx, Principal{Roles: []string{RoleAdmin}}, "s3cret!")
	assert.Equal(t, context.Canceled, err)
}

func TestHashSecret_Blank(t *testing.T) {
	_, err := HashSecret("   ")
	assert.Error(t, err)
}

func TestPrincipal(t *testing.T) {
	p := Principal{Roles: []string{RoleAdminOwner, RoleAccountant}}
	assert.True(t, p.IsAdmin())
	assert.True(t, p.HasAnyRole(RoleTeacher, RoleAccountant))
	assert.False(t, p.HasAnyRole(RoleTeacher))
	assert.False(t, Principal{Roles: []string{RoleTeacher}}.IsAdmin())
}

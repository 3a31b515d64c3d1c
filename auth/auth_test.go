package auth

import (
	"context"
	"net/http/httptest"
	"project-hub/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenManager_Generate_Then_Validate(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("a-long-enough-test-secret")

	token, err := manager.GenerateToken("u1", []string{RoleService}, time.Hour)
	req.NoError(err)

	claims, err := manager.ValidateToken(token)
	req.NoError(err)
	req.Equal("u1", claims.UserID)
	req.True(claims.HasRole(RoleService))
	req.False(claims.HasRole("admin"))
	req.Equal("project-hub", claims.Issuer)
}

func TestTokenManager_Rejects_Bad_Tokens(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("a-long-enough-test-secret")
	other := NewTokenManager("another-secret")

	_, err := manager.ValidateToken("")
	req.ErrorIs(err, errors.ErrMissingToken)

	_, err = manager.ValidateToken("not-a-jwt")
	req.ErrorIs(err, errors.ErrInvalidToken)

	forged, err := other.GenerateToken("u1", nil, time.Hour)
	req.NoError(err)
	_, err = manager.ValidateToken(forged)
	req.ErrorIs(err, errors.ErrInvalidToken)

	expired, err := manager.GenerateToken("u1", nil, -time.Minute)
	req.NoError(err)
	_, err = manager.ValidateToken(expired)
	req.ErrorIs(err, errors.ErrInvalidToken)

	anonymous, err := manager.GenerateToken("", nil, time.Hour)
	req.NoError(err)
	_, err = manager.ValidateToken(anonymous)
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestTokenFromRequest(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	req.Equal("from-query", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	req.Equal("from-header", TokenFromRequest(r))
}

func TestClaimsContext(t *testing.T) {
	req := require.New(t)

	_, ok := ClaimsFromContext(context.Background())
	req.False(ok)

	ctx := WithClaims(context.Background(), &CustomClaims{UserID: "u1"})
	claims, ok := ClaimsFromContext(ctx)
	req.True(ok)
	req.Equal("u1", claims.UserID)
}

func TestValidate(t *testing.T) {
	req := require.New(t)
	due := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		input   any
		wantErr bool
	}{
		{"Valid reminder", ReminderRequest{"T1", "alice@example.com", "Write docs", due}, false},
		{"Invalid email", ReminderRequest{"T1", "alice", "Write docs", due}, true},
		{"Missing title", ReminderRequest{"T1", "alice@example.com", "", due}, true},
		{"Missing due date", ReminderRequest{"T1", "alice@example.com", "Write docs", time.Time{}}, true},
		{"Missing task", ReminderRequest{"", "alice@example.com", "Write docs", due}, true},
		{"Valid join", JoinRoomRequest{RoomID: "p1"}, false},
		{"Empty join", JoinRoomRequest{}, true},
		{"Missing event", NotifyRequest{}, true},
	}

	for _, tt := range tests {
		err := Validate(tt.input)
		if tt.wantErr {
			req.ErrorIs(err, errors.ErrInvalidInput, tt.name)
		} else {
			req.NoError(err, tt.name)
		}
	}
}

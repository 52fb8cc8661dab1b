package auth

import (
	"context"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

func TestAuthMiddleware(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t) // Reusing helper from token_test.go
	signer, _ := NewSigner(privPEM, pubPEM, DefaultIssuer)

	// Generate a valid token
	userID := uuid.New()
	token, _ := signer.GenerateToken(userID, "alice", time.Now())

	interceptor := NewAuthInterceptor(signer)
	dummyHandler := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		// Verify context injection
		id, ok := GetUserID(ctx)
		if !ok || id != userID {
			t.Errorf("Context missing correct UserID. Got %v, want %s", id, userID)
		}
		if name := GetUserName(ctx); name != "alice" {
			t.Errorf("Context missing display name. Got %q", name)
		}
		return connect.NewResponse(&struct{}{}), nil
	}

	// 1. Test Valid Request
	req := connect.NewRequest(&struct{}{})
	req.Header().Set("Authorization", "Bearer "+token)

	_, err := interceptor(dummyHandler)(context.Background(), req)
	if err != nil {
		t.Errorf("Unexpected error on valid request: %v", err)
	}

	// 2. Test Missing Header
	reqMissing := connect.NewRequest(&struct{}{})
	_, err = interceptor(dummyHandler)(context.Background(), reqMissing)
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("Expected unauthenticated for missing header, got %v", err)
	}

	// 3. Test Invalid Header Format
	reqBadFormat := connect.NewRequest(&struct{}{})
	reqBadFormat.Header().Set("Authorization", token) // Missing "Bearer "
	_, err = interceptor(dummyHandler)(context.Background(), reqBadFormat)
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("Expected unauthenticated for bad header format, got %v", err)
	}
}

func TestGetUserID_NoClaims(t *testing.T) {
	if _, ok := GetUserID(context.Background()); ok {
		t.Error("expected no user id on empty context")
	}
	if name := GetUserName(context.Background()); name != "" {
		t.Errorf("expected empty name, got %q", name)
	}
}

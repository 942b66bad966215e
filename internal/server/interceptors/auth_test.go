package interceptors

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"geoqueue/backend/internal/security"
)

const protectedMethod = "/geoqueue.ticket.v1.TicketService/VerifyTicket"

func newTokens(t *testing.T) *security.TokenProvider {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	return tokens
}

func bearerContext(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "Bearer " + token,
	}))
}

func TestAuthUnary_PublicMethod(t *testing.T) {
	interceptor := AuthUnary(newTokens(t), map[string]bool{
		"/geoqueue.ticket.v1.TicketService/AllocateTicket": true,
	})
	resp, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/geoqueue.ticket.v1.TicketService/AllocateTicket",
	}, okHandler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "success" {
		t.Errorf("response = %v, want %q", resp, "success")
	}
}

func TestAuthUnary_ProtectedMethod_NoToken(t *testing.T) {
	interceptor := AuthUnary(newTokens(t), map[string]bool{})
	_, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: protectedMethod}, okHandler)
	if err == nil {
		t.Fatal("expected error for missing token")
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("error is not a gRPC status: %v", err)
	}
	if st.Code() != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", st.Code(), codes.Unauthenticated)
	}
}

func TestAuthUnary_ProtectedMethod_ValidToken(t *testing.T) {
	tokens := newTokens(t)
	token, _, err := tokens.IssueStaff("staff-1", "site-1")
	if err != nil {
		t.Fatalf("IssueStaff: %v", err)
	}
	interceptor := AuthUnary(tokens, map[string]bool{})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		staffID, ok := GetStaffID(ctx)
		if !ok || staffID != "staff-1" {
			t.Errorf("staff_id = %q, ok = %v, want %q", staffID, ok, "staff-1")
		}
		siteID, ok := GetSiteID(ctx)
		if !ok || siteID != "site-1" {
			t.Errorf("site_id = %q, ok = %v, want %q", siteID, ok, "site-1")
		}
		return "success", nil
	}
	resp, err := interceptor(bearerContext(token), "request", &grpc.UnaryServerInfo{FullMethod: protectedMethod}, handler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "success" {
		t.Errorf("response = %v, want %q", resp, "success")
	}
}

func TestAuthUnary_ProtectedMethod_InvalidToken(t *testing.T) {
	interceptor := AuthUnary(newTokens(t), map[string]bool{})
	_, err := interceptor(bearerContext("invalid-token"), "request", &grpc.UnaryServerInfo{FullMethod: protectedMethod}, okHandler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
}

func TestAuthUnary_DisabledPassesThrough(t *testing.T) {
	interceptor := AuthUnary(nil, nil)
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		if _, ok := GetStaffID(ctx); ok {
			t.Error("staff_id should not be set when auth is disabled")
		}
		return "success", nil
	}
	resp, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: protectedMethod}, handler)
	if err != nil || resp != "success" {
		t.Errorf("interceptor = %v, %v", resp, err)
	}
}

func TestExtractBearer_Valid(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "Bearer token123",
	}))
	token := extractBearer(ctx)
	if token != "token123" {
		t.Errorf("token = %q, want %q", token, "token123")
	}
}

func TestExtractBearer_CaseInsensitive(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "bearer token123",
	}))
	token := extractBearer(ctx)
	if token != "token123" {
		t.Errorf("token = %q, want %q", token, "token123")
	}
}

func TestExtractBearer_Missing(t *testing.T) {
	ctx := context.Background()
	token := extractBearer(ctx)
	if token != "" {
		t.Errorf("token = %q, want empty", token)
	}
}

func TestExtractBearer_InvalidPrefix(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "Basic token123",
	}))
	token := extractBearer(ctx)
	if token != "" {
		t.Errorf("token = %q, want empty", token)
	}
}

func TestExtractBearer_Whitespace(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "  Bearer   token123  ",
	}))
	token := extractBearer(ctx)
	if token != "token123" {
		t.Errorf("token = %q, want %q", token, "token123")
	}
}

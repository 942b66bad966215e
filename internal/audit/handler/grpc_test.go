package handler

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	auditv1 "geoqueue/backend/api/audit/v1"
	auditdomain "geoqueue/backend/internal/audit/domain"
	auditrepo "geoqueue/backend/internal/audit/repository"
	"geoqueue/backend/internal/server/interceptors"
)

// mockAuditRepo implements Repository for tests.
type mockAuditRepo struct {
	logs    map[string][]*auditdomain.AuditLog
	listErr error
}

func (m *mockAuditRepo) GetByID(ctx context.Context, id string) (*auditdomain.AuditLog, error) {
	return nil, nil
}

func (m *mockAuditRepo) Create(ctx context.Context, a *auditdomain.AuditLog) error {
	return nil
}

func (m *mockAuditRepo) ListBySite(ctx context.Context, siteID string, limit, offset int32, filter auditrepo.Filter) ([]*auditdomain.AuditLog, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var filtered []*auditdomain.AuditLog
	for _, log := range m.logs[siteID] {
		if filter.ActorID != nil && log.ActorID != *filter.ActorID {
			continue
		}
		if filter.Action != nil && log.Action != *filter.Action {
			continue
		}
		if filter.Resource != nil && log.Resource != *filter.Resource {
			continue
		}
		filtered = append(filtered, log)
	}
	start := int(offset)
	if start >= len(filtered) {
		return []*auditdomain.AuditLog{}, nil
	}
	end := start + int(limit)
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], nil
}

func staffCtx(staffID, siteID string) context.Context {
	return interceptors.WithStaff(context.Background(), staffID, siteID)
}

func seededRepo(n int) *mockAuditRepo {
	now := time.Now().UTC()
	repo := &mockAuditRepo{logs: map[string][]*auditdomain.AuditLog{}}
	for i := 0; i < n; i++ {
		actor := "staff-1"
		if i%2 == 1 {
			actor = "staff-2"
		}
		repo.logs["site-1"] = append(repo.logs["site-1"], &auditdomain.AuditLog{
			ID: "log-" + strconv.Itoa(i), SiteID: "site-1", ActorID: actor,
			Action: "verify", Resource: "ticket", IP: "10.0.0.1", CreatedAt: now,
		})
	}
	return repo
}

func TestListAuditLogs_Success(t *testing.T) {
	srv := NewServer(seededRepo(3))
	resp, err := srv.ListAuditLogs(staffCtx("staff-1", "site-1"), &auditv1.ListAuditLogsRequest{})
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(resp.Logs) != 3 {
		t.Fatalf("logs = %d, want 3", len(resp.Logs))
	}
	if resp.Logs[0].Id != "log-0" || resp.Logs[0].SiteId != "site-1" || resp.Logs[0].Ip != "10.0.0.1" {
		t.Errorf("first log = %+v", resp.Logs[0])
	}
	if resp.NextOffset != 0 {
		t.Errorf("NextOffset = %d, want 0 on a short page", resp.NextOffset)
	}
}

func TestListAuditLogs_Filter(t *testing.T) {
	srv := NewServer(seededRepo(4))
	actor := "staff-2"
	resp, err := srv.ListAuditLogs(staffCtx("staff-1", "site-1"), &auditv1.ListAuditLogsRequest{ActorId: &actor})
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(resp.Logs) != 2 {
		t.Errorf("logs = %d, want 2", len(resp.Logs))
	}
	for _, l := range resp.Logs {
		if l.ActorId != actor {
			t.Errorf("actor = %q, want %q", l.ActorId, actor)
		}
	}
}

func TestListAuditLogs_Pagination(t *testing.T) {
	srv := NewServer(seededRepo(5))
	resp, err := srv.ListAuditLogs(staffCtx("staff-1", "site-1"), &auditv1.ListAuditLogsRequest{PageSize: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(resp.Logs) != 2 || resp.Logs[0].Id != "log-2" {
		t.Errorf("page = %+v", resp.Logs)
	}
	if resp.NextOffset != 4 {
		t.Errorf("NextOffset = %d, want 4", resp.NextOffset)
	}
}

func TestListAuditLogs_MaxPageSize(t *testing.T) {
	srv := NewServer(seededRepo(150))
	resp, err := srv.ListAuditLogs(staffCtx("staff-1", "site-1"), &auditv1.ListAuditLogsRequest{PageSize: 150})
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(resp.Logs) != maxPageSize {
		t.Errorf("logs count = %d, want %d", len(resp.Logs), maxPageSize)
	}
}

func TestListAuditLogs_Scope(t *testing.T) {
	srv := NewServer(seededRepo(1))
	tests := []struct {
		name string
		ctx  context.Context
		req  *auditv1.ListAuditLogsRequest
		want codes.Code
	}{
		{"unauthenticated", context.Background(), &auditv1.ListAuditLogsRequest{SiteId: "site-1"}, codes.Unauthenticated},
		{"other site", staffCtx("staff-1", "site-1"), &auditv1.ListAuditLogsRequest{SiteId: "site-2"}, codes.PermissionDenied},
		{"unscoped without site", staffCtx("staff-1", ""), &auditv1.ListAuditLogsRequest{}, codes.InvalidArgument},
		{"unscoped with site", staffCtx("staff-1", ""), &auditv1.ListAuditLogsRequest{SiteId: "site-1"}, codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.ListAuditLogs(tt.ctx, tt.req)
			if got := status.Code(err); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListAuditLogs_RepoError(t *testing.T) {
	srv := NewServer(&mockAuditRepo{listErr: errors.New("db down")})
	_, err := srv.ListAuditLogs(staffCtx("staff-1", "site-1"), &auditv1.ListAuditLogsRequest{})
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %v, want Internal", status.Code(err))
	}
}

func TestListAuditLogs_NilRepo(t *testing.T) {
	_, err := NewServer(nil).ListAuditLogs(staffCtx("staff-1", "site-1"), &auditv1.ListAuditLogsRequest{})
	if status.Code(err) != codes.Unimplemented {
		t.Errorf("code = %v, want Unimplemented", status.Code(err))
	}
}

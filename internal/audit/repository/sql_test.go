package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"geoqueue/backend/internal/audit/domain"
	"geoqueue/backend/internal/db"
)

func TestSQLRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer conn.Close()
	repo := NewSQLRepository(conn)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		actor := "staff-1"
		if i%2 == 1 {
			actor = ""
		}
		entry := &domain.AuditLog{
			ID: fmt.Sprintf("a%d", i), SiteID: "site-1", ActorID: actor,
			Action: "verify", Resource: "ticket", IP: "10.0.0.1", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if i == 4 {
			entry.Action = domain.ActionTicketUsed
			entry.Metadata = `{"ticketId":"t-1"}`
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	_ = repo.Create(ctx, &domain.AuditLog{ID: "other", SiteID: "site-2", Action: "verify", Resource: "ticket", IP: "x", CreatedAt: base})

	all, err := repo.ListBySite(ctx, "site-1", 10, 0, Filter{})
	if err != nil {
		t.Fatalf("ListBySite: %v", err)
	}
	if len(all) != 5 || all[0].ID != "a4" || all[4].ID != "a0" {
		t.Fatalf("ListBySite order = %v", ids(all))
	}
	if all[0].Metadata != `{"ticketId":"t-1"}` || all[1].ActorID != "" {
		t.Errorf("nullable columns: %+v / %+v", all[0], all[1])
	}

	page, _ := repo.ListBySite(ctx, "site-1", 2, 2, Filter{})
	if len(page) != 2 || page[0].ID != "a2" {
		t.Errorf("page = %v", ids(page))
	}

	actor, action := "staff-1", "verify"
	filtered, err := repo.ListBySite(ctx, "site-1", 10, 0, Filter{ActorID: &actor, Action: &action})
	if err != nil {
		t.Fatalf("ListBySite filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("filtered = %v, want a2 and a0", ids(filtered))
	}

	got, err := repo.GetByID(ctx, "a4")
	if err != nil || got == nil || got.Action != domain.ActionTicketUsed {
		t.Errorf("GetByID = %+v, %v", got, err)
	}
	if missing, err := repo.GetByID(ctx, "nope"); err != nil || missing != nil {
		t.Errorf("GetByID(missing) = %v, %v", missing, err)
	}
}

func ids(list []*domain.AuditLog) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}

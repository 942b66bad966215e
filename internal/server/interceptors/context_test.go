package interceptors

import (
	"context"
	"testing"
)

func TestWithStaff_SetsValues(t *testing.T) {
	ctx := WithStaff(context.Background(), "staff-1", "site-1")
	if v, ok := GetStaffID(ctx); !ok || v != "staff-1" {
		t.Errorf("GetStaffID = %q, %v; want staff-1, true", v, ok)
	}
	if v, ok := GetSiteID(ctx); !ok || v != "site-1" {
		t.Errorf("GetSiteID = %q, %v; want site-1, true", v, ok)
	}
}

func TestGetters_ReturnFalseWhenNotSet(t *testing.T) {
	ctx := context.Background()
	if v, ok := GetStaffID(ctx); ok || v != "" {
		t.Errorf("GetStaffID = %q, %v; want empty, false", v, ok)
	}
	if v, ok := GetSiteID(ctx); ok || v != "" {
		t.Errorf("GetSiteID = %q, %v; want empty, false", v, ok)
	}
}

func TestWithStaff_EmptySiteScope(t *testing.T) {
	ctx := WithStaff(context.Background(), "staff-1", "")
	if v, ok := GetSiteID(ctx); !ok || v != "" {
		t.Errorf("GetSiteID = %q, %v; want empty, true", v, ok)
	}
}

func TestContext_Isolation(t *testing.T) {
	parent := WithStaff(context.Background(), "staff-1", "site-1")
	child := WithStaff(parent, "staff-2", "site-2")
	if v, _ := GetStaffID(parent); v != "staff-1" {
		t.Errorf("parent staff = %q, want staff-1", v)
	}
	if v, _ := GetStaffID(child); v != "staff-2" {
		t.Errorf("child staff = %q, want staff-2", v)
	}
	type otherKey struct{ name string }
	if v := child.Value(otherKey{"staff_id"}); v != nil {
		t.Errorf("foreign key lookup = %v, want nil", v)
	}
}

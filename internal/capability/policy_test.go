package capability

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPolicyMissingFileIsDenied(t *testing.T) {
	o := &Policy{Path: filepath.Join(t.TempDir(), "grants.json")}

	granted, err := o.Granted(context.Background(), ReadSMS)
	if err != nil {
		t.Fatalf("granted: %v", err)
	}
	if granted {
		t.Fatalf("expected missing grants file to deny")
	}
}

func TestPolicyGrantAndRevoke(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	o := &Policy{Path: path}
	ctx := context.Background()

	if err := GrantPermission(path, ReadSMS); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if granted, err := o.Granted(ctx, ReadSMS); err != nil || !granted {
		t.Fatalf("expected granted after grant, got %v, %v", granted, err)
	}

	first, err := LoadGrants(path)
	if err != nil {
		t.Fatalf("load grants: %v", err)
	}
	if err := GrantPermission(path, ReadSMS); err != nil {
		t.Fatalf("grant again: %v", err)
	}
	second, err := LoadGrants(path)
	if err != nil {
		t.Fatalf("load grants: %v", err)
	}
	if len(second.Grants) != 1 || !second.Grants[0].GrantedAt.Equal(first.Grants[0].GrantedAt) {
		t.Fatalf("expected idempotent grant, got %+v", second.Grants)
	}

	if err := RevokePermission(path, ReadSMS); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if granted, err := o.Granted(ctx, ReadSMS); err != nil || granted {
		t.Fatalf("expected denied after revoke, got %v, %v", granted, err)
	}
}

func TestPolicyReadsFileOnEveryQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	o := &Policy{Path: path}
	ctx := context.Background()

	if granted, _ := o.Granted(ctx, ReadSMS); granted {
		t.Fatalf("expected denied before file exists")
	}
	body := `{"grants":[{"permission":"android.permission.READ_SMS","granted_at":"2026-01-01T00:00:00Z"}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write grants: %v", err)
	}
	if granted, err := o.Granted(ctx, ReadSMS); err != nil || !granted {
		t.Fatalf("expected granted after external write, got %v, %v", granted, err)
	}
}

func TestPolicyMalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write grants: %v", err)
	}

	granted, err := (&Policy{Path: path}).Granted(context.Background(), ReadSMS)
	if err == nil {
		t.Fatalf("expected error for malformed grants file")
	}
	if granted {
		t.Fatalf("expected granted=false alongside error")
	}
	if err := GrantPermission(path, ReadSMS); err == nil {
		t.Fatalf("expected grant to refuse overwriting a malformed file")
	}
}

func TestPolicyEmptyFileIsDenied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("write grants: %v", err)
	}
	if granted, err := (&Policy{Path: path}).Granted(context.Background(), ReadSMS); err != nil || granted {
		t.Fatalf("expected denied without error, got %v, %v", granted, err)
	}
}

func TestPolicyUnknownPermission(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	if _, err := (&Policy{Path: path}).Granted(context.Background(), "android.permission.CAMERA"); !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
	if err := GrantPermission(path, "android.permission.CAMERA"); !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission from grant, got %v", err)
	}
}

package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/cashflowly/mpesa-listener/internal/store"
)

// Grant is one granted permission recorded in the grants file.
type Grant struct {
	Permission Permission `json:"permission"`
	GrantedAt  time.Time  `json:"granted_at"`
}

// GrantsFile is the on-disk shape of the grants file.
type GrantsFile struct {
	Grants []Grant `json:"grants"`
}

// Policy answers from a JSON grants file, re-read on every query.
// A missing file grants nothing.
type Policy struct {
	Path string
}

// Granted reports whether p is listed in the grants file.
func (o *Policy) Granted(ctx context.Context, p Permission) (bool, error) {
	if err := checkKnown(p); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	grants, err := LoadGrants(o.Path)
	if err != nil {
		return false, err
	}
	return grants.Has(p), nil
}

// Has reports whether p is granted.
func (f GrantsFile) Has(p Permission) bool {
	return slices.ContainsFunc(f.Grants, func(g Grant) bool { return g.Permission == p })
}

// LoadGrants loads the grants file at path. Missing or empty files return no grants.
func LoadGrants(path string) (GrantsFile, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return GrantsFile{}, errors.New("grants path is required")
	}

	content, err := store.ReadFile(trimmedPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		return GrantsFile{Grants: []Grant{}}, nil
	default:
		return GrantsFile{}, fmt.Errorf("read grants file %q: %w", trimmedPath, err)
	}
	return decodeGrants(trimmedPath, []byte(content))
}

// GrantPermission records p as granted. Granting twice keeps the first timestamp.
func GrantPermission(path string, p Permission) error {
	if err := checkKnown(p); err != nil {
		return err
	}
	return updateGrants(path, func(f *GrantsFile) {
		if f.Has(p) {
			return
		}
		f.Grants = append(f.Grants, Grant{Permission: p, GrantedAt: time.Now().UTC()})
	})
}

// RevokePermission removes p from the grants file.
func RevokePermission(path string, p Permission) error {
	if err := checkKnown(p); err != nil {
		return err
	}
	return updateGrants(path, func(f *GrantsFile) {
		f.Grants = slices.DeleteFunc(f.Grants, func(g Grant) bool { return g.Permission == p })
	})
}

func updateGrants(path string, mutate func(*GrantsFile)) error {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return errors.New("grants path is required")
	}
	return store.UpdateFile(trimmedPath, 0o644, func(current []byte) ([]byte, error) {
		grants, err := decodeGrants(trimmedPath, current)
		if err != nil {
			return nil, err
		}
		mutate(&grants)
		if grants.Grants == nil {
			grants.Grants = []Grant{}
		}
		encoded, err := json.MarshalIndent(grants, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode grants: %w", err)
		}
		return append(encoded, '\n'), nil
	})
}

func decodeGrants(path string, content []byte) (GrantsFile, error) {
	if len(strings.TrimSpace(string(content))) == 0 {
		return GrantsFile{Grants: []Grant{}}, nil
	}
	var grants GrantsFile
	if err := json.Unmarshal(content, &grants); err != nil {
		return GrantsFile{}, fmt.Errorf("decode grants file %q: %w", path, err)
	}
	if grants.Grants == nil {
		grants.Grants = []Grant{}
	}
	return grants, nil
}

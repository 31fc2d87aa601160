package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// ErrInvalidDocument is returned for seed files that do not describe a
// consistent set of roles and grants.
var ErrInvalidDocument = errors.New("seed.invalid_document")

// Document is the YAML layout of a seed file.
type Document struct {
	Roles  []Role  `yaml:"roles"`
	Grants []Grant `yaml:"grants"`
	Owners []Owner `yaml:"owners"`
	Bans   []Ban   `yaml:"bans"`
}

// Role declares a role and its members.
type Role struct {
	ID          string   `yaml:"id"`
	Code        string   `yaml:"code"`
	Description string   `yaml:"description"`
	Inactive    bool     `yaml:"inactive"`
	Members     []string `yaml:"members"`
}

// Grant gives a user or a role permissions on an entity. An empty entity id
// grants on the whole entity type.
type Grant struct {
	EntityType  string          `yaml:"entity_type"`
	EntityID    string          `yaml:"entity_id"`
	User        string          `yaml:"user"`
	Role        string          `yaml:"role"`
	Permissions permission.Mask `yaml:"permissions"`
}

// Owner makes a user the owner of an entity.
type Owner struct {
	EntityType string `yaml:"entity_type"`
	EntityID   string `yaml:"entity_id"`
	User       string `yaml:"user"`
	Private    bool   `yaml:"private"`
}

// Ban bans a user from writing entities of a type.
type Ban struct {
	EntityType string `yaml:"entity_type"`
	User       string `yaml:"user"`
}

// LoadFile reads a seed document from path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, errors.Join(ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document without touching any store.
func (d *Document) Validate() error {
	var errs []error
	roles := make(map[string]struct{}, len(d.Roles))
	for i, r := range d.Roles {
		if r.ID == "" {
			errs = append(errs, fmt.Errorf("roles[%d]: id is required", i))
			continue
		}
		if _, dup := roles[r.ID]; dup {
			errs = append(errs, fmt.Errorf("roles[%d]: duplicate id %q", i, r.ID))
		}
		roles[r.ID] = struct{}{}
	}
	for i, g := range d.Grants {
		switch {
		case g.EntityType == "":
			errs = append(errs, fmt.Errorf("grants[%d]: entity_type is required", i))
		case (g.User == "") == (g.Role == ""):
			errs = append(errs, fmt.Errorf("grants[%d]: exactly one of user and role is required", i))
		case g.Permissions.IsNone():
			errs = append(errs, fmt.Errorf("grants[%d]: permissions are required", i))
		case g.Permissions.Has(permission.Owner):
			errs = append(errs, fmt.Errorf("grants[%d]: use owners to grant ownership", i))
		}
	}
	for i, o := range d.Owners {
		if o.EntityType == "" || o.EntityID == "" || o.User == "" {
			errs = append(errs, fmt.Errorf("owners[%d]: entity_type, entity_id and user are required", i))
		}
	}
	for i, b := range d.Bans {
		if b.EntityType == "" || b.User == "" {
			errs = append(errs, fmt.Errorf("bans[%d]: entity_type and user are required", i))
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidDocument}, errs...)...)
	}
	return nil
}

// Stats counts what Apply wrote.
type Stats struct {
	Roles   int
	Members int
	Grants  int
	Owners  int
	Bans    int
}

// Apply writes the document through the engine: roles and members first,
// then owners, grants and bans. Every step is idempotent, so applying the
// same document twice leaves the store unchanged.
func Apply(ctx context.Context, e *acl.Engine, d *Document) (Stats, error) {
	var st Stats
	if err := d.Validate(); err != nil {
		return st, err
	}

	for _, r := range d.Roles {
		info := acl.RoleInfo{ID: r.ID, Code: r.Code, Description: r.Description, Active: !r.Inactive}
		if info.Code == "" {
			info.Code = r.ID
		}
		if err := e.CreateRole(ctx, info); err != nil {
			return st, fmt.Errorf("seed: role %s: %w", r.ID, err)
		}
		st.Roles++
		for _, userID := range r.Members {
			if err := e.AddRoleMember(ctx, userID, r.ID); err != nil {
				return st, fmt.Errorf("seed: member %s of %s: %w", userID, r.ID, err)
			}
			st.Members++
		}
	}

	for _, o := range d.Owners {
		entityType := acl.EntityType(o.EntityType)
		if err := e.GrantOwner(ctx, entityType, o.User, o.EntityID); err != nil {
			return st, fmt.Errorf("seed: owner of %s/%s: %w", o.EntityType, o.EntityID, err)
		}
		if o.Private {
			if err := e.SetPrivate(ctx, entityType, o.EntityID, true); err != nil {
				return st, fmt.Errorf("seed: private %s/%s: %w", o.EntityType, o.EntityID, err)
			}
		}
		st.Owners++
	}

	for _, g := range d.Grants {
		entityType := acl.EntityType(g.EntityType)
		var err error
		if g.Role != "" {
			err = e.GrantToRole(ctx, g.Permissions, entityType, g.EntityID, g.Role)
		} else {
			err = e.GrantToUser(ctx, g.Permissions, entityType, g.EntityID, g.User)
		}
		if err != nil {
			subject := acl.User(g.User)
			if g.Role != "" {
				subject = acl.Role(g.Role)
			}
			return st, fmt.Errorf("seed: grant %s on %s/%s: %w", subject, g.EntityType, g.EntityID, err)
		}
		st.Grants++
	}

	for _, b := range d.Bans {
		if err := e.SetUserBanned(ctx, acl.EntityType(b.EntityType), b.User, true); err != nil {
			return st, fmt.Errorf("seed: ban %s on %s: %w", b.User, b.EntityType, err)
		}
		st.Bans++
	}
	return st, nil
}

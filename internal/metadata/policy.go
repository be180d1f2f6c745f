package metadata

import (
	"encoding/json"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

type AccessKind string

const (
	AccessDenied    AccessKind = "denied"
	AccessPublic    AccessKind = "public"
	AccessRoleList  AccessKind = "roles"
	AccessDelegated AccessKind = "delegated"
)

// Delegation resolves access per row. Inherit and Pivot are independent and may
// be combined.
type Delegation struct {
	// Inherit names a belongsTo relation whose target's owner also owns this row.
	Inherit string `json:"inherit,omitempty"`
	// Pivot is a grant table keyed by (<table>_id, user_id) with one boolean column per action.
	Pivot string `json:"pivot,omitempty"`
	// PivotCondition overrides the default pivot join as a [left, right] column pair.
	PivotCondition []string `json:"pivot_condition,omitempty"`
}

// AccessRule is the policy for one action. A RoleList rule may carry a
// Delegation used as a row-level fallback for actors outside the role set.
type AccessRule struct {
	Kind       AccessKind  `json:"kind"`
	Roles      []string    `json:"roles,omitempty"`
	Delegation *Delegation `json:"delegation,omitempty"`
}

// AllowsRole reports whether role is in the rule's role set.
func (r AccessRule) AllowsRole(role string) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts the short policy forms:
//
//	read: true                      public
//	read: false                     denied
//	read: [admin, editor]           role list
//	read: {pivot: book_pivot_user}  delegated
//	read: {roles: [editor], inherit: book}
func (r *AccessRule) UnmarshalJSON(data []byte) error {
	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		if flag {
			*r = AccessRule{Kind: AccessPublic}
		} else {
			*r = AccessRule{Kind: AccessDenied}
		}
		return nil
	}

	var roles []string
	if err := json.Unmarshal(data, &roles); err == nil {
		*r = AccessRule{Kind: AccessRoleList, Roles: roles}
		return nil
	}

	var obj struct {
		Delegation
		Roles []string `json:"roles"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("access rule must be a boolean, a role list or an object: %w", err)
	}
	if obj.PivotCondition != nil && len(obj.PivotCondition) != 2 {
		return fmt.Errorf("pivot_condition must be a [left, right] column pair")
	}
	if obj.PivotCondition != nil && obj.Pivot == "" {
		return fmt.Errorf("pivot_condition requires pivot")
	}

	var delegation *Delegation
	if obj.Inherit != "" || obj.Pivot != "" {
		d := obj.Delegation
		delegation = &d
	}

	switch {
	case len(obj.Roles) > 0:
		*r = AccessRule{Kind: AccessRoleList, Roles: obj.Roles, Delegation: delegation}
	case delegation != nil:
		*r = AccessRule{Kind: AccessDelegated, Delegation: delegation}
	default:
		return fmt.Errorf("access rule object needs roles, inherit or pivot")
	}
	return nil
}

// RefPolicy declares one relation. Exactly one of Belongs, HasMany or Pivot is set.
type RefPolicy struct {
	Model   string `json:"model,omitempty"`
	Belongs string `json:"belongs,omitempty"`
	HasMany string `json:"hasMany,omitempty"`
	Pivot   string `json:"pivot,omitempty"`
}

// SlugPolicy overrides the URL names of a model.
type SlugPolicy struct {
	Single string `json:"single,omitempty"`
	Plural string `json:"plural,omitempty"`
}

// RulePolicy is an expression rule; a true result is a violation on Field.
type RulePolicy struct {
	Field      string `json:"field,omitempty"`
	Expression string `json:"expression"`
	Message    string `json:"message,omitempty"`
}

// ModelPolicy is the hand-authored behaviour of one model.
type ModelPolicy struct {
	Table    string                `json:"table"`
	UserID   bool                  `json:"user_id,omitempty"`
	Slug     *SlugPolicy           `json:"slug,omitempty"`
	Refs     map[string]RefPolicy  `json:"refs,omitempty"`
	Access   map[string]AccessRule `json:"access,omitempty"`
	Defaults *Defaults             `json:"defaults,omitempty"`
	Rules    []RulePolicy          `json:"rules,omitempty"`
}

// Policy is the policy file: model name -> model policy.
type Policy struct {
	Models map[string]ModelPolicy `json:"models"`
}

// ParsePolicy decodes a YAML or JSON policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	for name, mp := range p.Models {
		for action := range mp.Access {
			if !IsAction(action) {
				return nil, fmt.Errorf("model %s: unknown access action %q", name, action)
			}
		}
	}
	return &p, nil
}

// LoadPolicy reads and decodes a policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicy(data)
}

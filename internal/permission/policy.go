// Package permission decides whether an agent may write into the vault.
package permission

import (
	"fmt"
	"strings"
)

// Policy is the vault write policy.
type Policy int

const (
	// ExportOnly allows writes inside the export folder only.
	ExportOnly Policy = iota
	// WithApproval allows export-folder writes and defers everything else
	// to a human.
	WithApproval
	// Unrestricted allows every write inside the vault.
	Unrestricted
)

var policyNames = map[Policy]string{
	ExportOnly:   "export_only",
	WithApproval: "with_approval",
	Unrestricted: "unrestricted",
}

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for p, name := range policyNames {
		if name == norm {
			return p, nil
		}
	}
	return 0, fmt.Errorf("permission: unknown write policy %q", s)
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if _, ok := policyNames[p]; !ok {
		return nil, fmt.Errorf("permission: invalid policy %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so policies decode
// from both YAML and JSON configuration.
func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

package permission

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/osmen/vaultsync/internal/models"
)

func TestCanWrite(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		target string
		want   models.PermissionDecision
	}{
		{"export under export_only", ExportOnly, "OsMEN-Exports/summary.md",
			models.PermissionDecision{Allowed: true, Reason: ReasonExportFolder}},
		{"export nested", ExportOnly, "OsMEN-Exports/reports/q3.md",
			models.PermissionDecision{Allowed: true, Reason: ReasonExportFolder}},
		{"outside under export_only", ExportOnly, "Projects/plan.md",
			models.PermissionDecision{Allowed: false, Reason: ReasonExportOnly}},
		{"outside under with_approval", WithApproval, "Projects/plan.md",
			models.PermissionDecision{Allowed: false, Reason: ReasonNeedsApproval, NeedsApproval: true}},
		{"export under with_approval", WithApproval, "OsMEN-Exports/a.md",
			models.PermissionDecision{Allowed: true, Reason: ReasonExportFolder}},
		{"outside under unrestricted", Unrestricted, "Projects/plan.md",
			models.PermissionDecision{Allowed: true, Reason: ReasonUnrestricted}},
		{"export under unrestricted", Unrestricted, "OsMEN-Exports/a.md",
			models.PermissionDecision{Allowed: true, Reason: ReasonExportFolder}},
		{"prefix lookalike", ExportOnly, "OsMEN-Exports-old/a.md",
			models.PermissionDecision{Allowed: false, Reason: ReasonExportOnly}},
		{"export folder deeper", ExportOnly, "Projects/OsMEN-Exports/a.md",
			models.PermissionDecision{Allowed: false, Reason: ReasonExportOnly}},
		{"traversal", Unrestricted, "OsMEN-Exports/../../etc/passwd",
			models.PermissionDecision{Allowed: false, Reason: ReasonInvalidPath}},
		{"absolute", Unrestricted, "/etc/passwd",
			models.PermissionDecision{Allowed: false, Reason: ReasonInvalidPath}},
		{"empty", Unrestricted, "",
			models.PermissionDecision{Allowed: false, Reason: ReasonInvalidPath}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGate(tc.policy, "")
			got := g.CanWrite(tc.target, "agent-1")
			if got != tc.want {
				t.Errorf("CanWrite(%q) = %+v, want %+v", tc.target, got, tc.want)
			}
		})
	}
}

// Every policy allows the export folder; decisions never set both flags.
func TestCanWriteInvariants(t *testing.T) {
	targets := []string{"OsMEN-Exports/x.md", "a.md", "Deep/er/x.md", "../x.md"}
	for _, p := range []Policy{ExportOnly, WithApproval, Unrestricted} {
		g := NewGate(p, "OsMEN-Exports")
		if d := g.CanWrite("OsMEN-Exports/x.md", ""); !d.Allowed {
			t.Errorf("%s: export folder denied", p)
		}
		for _, target := range targets {
			d := g.CanWrite(target, "")
			if d.Allowed && d.NeedsApproval {
				t.Errorf("%s %s: allowed and needs_approval both set", p, target)
			}
			if d.Reason == "" {
				t.Errorf("%s %s: empty reason", p, target)
			}
		}
	}
}

func TestCustomExportFolder(t *testing.T) {
	g := NewGate(ExportOnly, "/Agent Output/")
	if g.ExportFolder() != "Agent Output" {
		t.Fatalf("ExportFolder = %q", g.ExportFolder())
	}
	if !g.CanWrite("Agent Output/a.md", "").Allowed {
		t.Error("custom export folder should be writable")
	}
}

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"export_only", "with_approval", "unrestricted", " Unrestricted "} {
		p, err := ParsePolicy(s)
		if err != nil {
			t.Errorf("ParsePolicy(%q): %v", s, err)
			continue
		}
		if p.String() == "" {
			t.Errorf("empty name for %q", s)
		}
	}
	if _, err := ParsePolicy("anything_goes"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestPolicyTextDecoding(t *testing.T) {
	var fromJSON struct {
		P Policy `json:"p"`
	}
	if err := json.Unmarshal([]byte(`{"p":"with_approval"}`), &fromJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	if fromJSON.P != WithApproval {
		t.Errorf("json policy = %v", fromJSON.P)
	}

	var fromYAML struct {
		P Policy `yaml:"p"`
	}
	if err := yaml.Unmarshal([]byte("p: unrestricted\n"), &fromYAML); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if fromYAML.P != Unrestricted {
		t.Errorf("yaml policy = %v", fromYAML.P)
	}

	if err := json.Unmarshal([]byte(`{"p":"bogus"}`), &fromJSON); err == nil {
		t.Error("expected error for bogus policy")
	}

	out, err := json.Marshal(fromYAML)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"P":"unrestricted"}` {
		t.Errorf("marshal = %s", out)
	}
}

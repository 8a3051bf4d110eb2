package access

import "testing"

const samplePolicy = `
defaultRead: true
defaultWrite: false
rules:
  - property: 256
    uid: 1000
    read: true
    write: true
    autoGet: true
  - property: 512
    uid: 2000
    read: false
    write: false
`

func TestParsePolicyRuleOverridesDefault(t *testing.T) {
	c, err := ParsePolicy([]byte(samplePolicy))
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}

	if !c.TestAccess(0x100, 1000, false) {
		t.Error("uid 1000 should have read access to 0x100")
	}
	if !c.TestAccess(0x100, 1000, true) {
		t.Error("uid 1000 should have write access to 0x100")
	}
	if c.TestAccess(0x200, 2000, false) {
		t.Error("uid 2000 should be denied read access to 0x200 by explicit rule")
	}
}

func TestParsePolicyFallsBackToDefault(t *testing.T) {
	c, err := ParsePolicy([]byte(samplePolicy))
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}

	if !c.TestAccess(0x999, 42, false) {
		t.Error("unknown (property, uid) pair should fall back to defaultRead=true")
	}
	if c.TestAccess(0x999, 42, true) {
		t.Error("unknown (property, uid) pair should fall back to defaultWrite=false")
	}
}

func TestIsAutoGetEnabled(t *testing.T) {
	c, err := ParsePolicy([]byte(samplePolicy))
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}

	if !c.IsAutoGetEnabled(0x100) {
		t.Error("0x100 should have auto_get enabled")
	}
	if c.IsAutoGetEnabled(0x200) {
		t.Error("0x200 should not have auto_get enabled")
	}
}

func TestLoadPolicyMissingFileIsError(t *testing.T) {
	_, err := LoadPolicy("/nonexistent/policy.yaml")
	if err == nil {
		t.Fatal("expected error loading nonexistent policy file")
	}
}

func TestParsePolicyInvalidYAMLIsError(t *testing.T) {
	_, err := ParsePolicy([]byte("not: [valid"))
	if err == nil {
		t.Fatal("expected error parsing invalid YAML")
	}
}

// Package access answers (property, caller uid, read/write) -> allow/deny
// queries and exposes the auto_get hint per property. The policy shape
// and its YAML loader follow the loader.LoadTestCase/ParseTestCase split
// in the retrieved pack (internal/testharness/loader/loader.go): parse
// from bytes and wrap file-reading errors with path context. The
// document's fields are not validated beyond YAML decoding.
package access

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Rule grants or denies read/write access to a single property for a
// single caller uid.
type Rule struct {
	Property int32 `yaml:"property"`
	UID      int32 `yaml:"uid"`
	Read     bool  `yaml:"read"`
	Write    bool  `yaml:"write"`
	AutoGet  bool  `yaml:"autoGet"`
}

// PolicyDocument is the on-disk YAML shape loaded by LoadPolicy.
type PolicyDocument struct {
	// DefaultRead/DefaultWrite apply when no Rule names a given
	// (property, uid) pair.
	DefaultRead  bool   `yaml:"defaultRead"`
	DefaultWrite bool   `yaml:"defaultWrite"`
	Rules        []Rule `yaml:"rules"`
}

// PolicyLoadError wraps a failure to read or parse a policy file with
// the path that failed, mirroring loader.LoadError's File/Message/Cause shape.
type PolicyLoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *PolicyLoadError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *PolicyLoadError) Unwrap() error { return e.Cause }

type ruleKey struct {
	prop int32
	uid  int32
}

// Controller answers access-policy queries. Construction must succeed
// before the broker starts serving requests; a failed load is fatal to
// the process, not recoverable per-request.
type Controller struct {
	mu sync.RWMutex

	defaultRead  bool
	defaultWrite bool
	rules        map[ruleKey]Rule
	autoGet      map[int32]bool
}

// ParsePolicy parses a policy document from YAML bytes.
func ParsePolicy(data []byte) (*Controller, error) {
	var doc PolicyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &PolicyLoadError{Message: "failed to parse policy YAML", Cause: err}
	}
	return newController(doc), nil
}

// LoadPolicy reads and parses a policy document from path.
func LoadPolicy(path string) (*Controller, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PolicyLoadError{File: path, Message: "failed to read policy file", Cause: err}
	}
	c, err := ParsePolicy(data)
	if err != nil {
		if ple, ok := err.(*PolicyLoadError); ok {
			ple.File = path
			return nil, ple
		}
		return nil, &PolicyLoadError{File: path, Message: err.Error()}
	}
	return c, nil
}

func newController(doc PolicyDocument) *Controller {
	c := &Controller{
		defaultRead:  doc.DefaultRead,
		defaultWrite: doc.DefaultWrite,
		rules:        make(map[ruleKey]Rule, len(doc.Rules)),
		autoGet:      make(map[int32]bool),
	}
	for _, r := range doc.Rules {
		c.rules[ruleKey{prop: r.Property, uid: r.UID}] = r
		if r.AutoGet {
			c.autoGet[r.Property] = true
		}
	}
	return c
}

// TestAccess reports whether uid may perform the requested operation
// (read or write) on prop.
func (c *Controller) TestAccess(prop int32, uid int32, isWrite bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if r, ok := c.rules[ruleKey{prop: prop, uid: uid}]; ok {
		if isWrite {
			return r.Write
		}
		return r.Read
	}
	if isWrite {
		return c.defaultWrite
	}
	return c.defaultRead
}

// IsAutoGetEnabled reports whether prop has the auto_get hint set by
// any rule naming it.
func (c *Controller) IsAutoGetEnabled(prop int32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.autoGet[prop]
}

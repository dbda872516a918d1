package taxdoc

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

//go:embed rules.toml
var defaultRules []byte

// DefaultLineItemLimit caps lineItemList fields when a rule sets no limit.
const DefaultLineItemLimit = 10

// amountLine keeps lines carrying an amount with exactly two decimals. The
// amount may not be part of a longer dotted run, so "01.15.2024" is no item.
var amountLine = regexp.MustCompile(`(?:^|[^\d.])\d+(?:,\d{3})*\.\d{2}(?:[^\d.]|$)`)

// FieldRule is one named, typed extraction instruction
type FieldRule struct {
	Name    string    `toml:"name"`
	Kind    FieldKind `toml:"kind"`
	Pattern string    `toml:"pattern"`
	Exclude string    `toml:"exclude"`
	Limit   int       `toml:"limit"`

	pattern *regexp.Regexp
	exclude *regexp.Regexp
}

// RuleSet holds everything known about one document type: how to detect it
// and which fields to pull out of it.
type RuleSet struct {
	Type             DocumentType `toml:"type"`
	TextKeywords     []string     `toml:"text_keywords"`
	FilenameKeywords []string     `toml:"filename_keywords"`
	Fields           []FieldRule  `toml:"field"`
}

// FieldNames returns the declared field names in rule order.
func (rs *RuleSet) FieldNames() []string {
	names := make([]string, len(rs.Fields))
	for i, f := range rs.Fields {
		names[i] = f.Name
	}
	return names
}

// matches expects already lower-cased text and filename.
func (rs *RuleSet) matches(text, filename string) bool {
	for _, kw := range rs.TextKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	if filename == "" {
		return false
	}
	for _, kw := range rs.FilenameKeywords {
		if strings.Contains(filename, kw) {
			return true
		}
	}
	return false
}

type rulesFile struct {
	RuleSets []RuleSet `toml:"ruleset"`
}

// Registry is the immutable set of rule sets, one per DocumentType. It is
// safe for concurrent use once built.
type Registry struct {
	sets map[DocumentType]*RuleSet
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the registry compiled from the embedded rules.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		reg, err := ParseRules(defaultRules)
		if err != nil {
			panic(fmt.Sprintf("embedded extraction rules are invalid: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// LoadRegistry returns the registry from path, or the embedded defaults
// when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	reg, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return reg, nil
}

// ParseRules decodes and validates a TOML rules document. Every
// DocumentType must appear exactly once.
func ParseRules(data []byte) (*Registry, error) {
	var file rulesFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	reg := &Registry{sets: make(map[DocumentType]*RuleSet, len(priorityOrder))}
	for i := range file.RuleSets {
		rs := &file.RuleSets[i]
		if !rs.Type.Valid() {
			return nil, fmt.Errorf("unknown document type %q", rs.Type)
		}
		if _, dup := reg.sets[rs.Type]; dup {
			return nil, fmt.Errorf("duplicate rule set for %q", rs.Type)
		}
		if err := compileRuleSet(rs); err != nil {
			return nil, fmt.Errorf("rule set %q: %w", rs.Type, err)
		}
		reg.sets[rs.Type] = rs
	}

	for _, t := range priorityOrder {
		if _, ok := reg.sets[t]; !ok {
			return nil, fmt.Errorf("missing rule set for %q", t)
		}
	}

	return reg, nil
}

func compileRuleSet(rs *RuleSet) error {
	rs.TextKeywords = lowerAll(rs.TextKeywords)
	rs.FilenameKeywords = lowerAll(rs.FilenameKeywords)

	seen := make(map[string]bool, len(rs.Fields))
	for i := range rs.Fields {
		f := &rs.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		if !f.Kind.valid() {
			return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
		}

		switch f.Kind {
		case KindText, KindCurrency:
			if f.Pattern == "" {
				return fmt.Errorf("field %q: %s fields need a pattern", f.Name, f.Kind)
			}
		case KindRaw, KindType:
			if f.Pattern != "" || f.Exclude != "" {
				return fmt.Errorf("field %q: %s fields take no pattern", f.Name, f.Kind)
			}
		}
		if f.Exclude != "" && f.Kind != KindLineItemList {
			return fmt.Errorf("field %q: exclude only applies to %s fields", f.Name, KindLineItemList)
		}

		var err error
		if f.Pattern != "" {
			if f.pattern, err = regexp.Compile("(?i)" + f.Pattern); err != nil {
				return fmt.Errorf("field %q: bad pattern: %w", f.Name, err)
			}
		}
		if f.Exclude != "" {
			if f.exclude, err = regexp.Compile("(?i)" + f.Exclude); err != nil {
				return fmt.Errorf("field %q: bad exclude pattern: %w", f.Name, err)
			}
		}

		if f.Kind == KindLineItemList {
			if f.Limit < 0 {
				return fmt.Errorf("field %q: negative limit", f.Name)
			}
			if f.Limit == 0 {
				f.Limit = DefaultLineItemLimit
			}
		}
	}
	return nil
}

// RuleSet returns the rules for t. Unknown labels get the General rules.
func (r *Registry) RuleSet(t DocumentType) *RuleSet {
	if rs, ok := r.sets[t]; ok {
		return rs
	}
	return r.sets[General]
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

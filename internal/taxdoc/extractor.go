package taxdoc

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// D/M/Y style or Y-M-D style, no calendar validation
	datePattern = regexp.MustCompile(`\b(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}|\d{2,4}[/\-.]\d{1,2}[/\-.]\d{1,2})\b`)

	// everything that is not part of a plain decimal number
	currencyNoise = regexp.MustCompile(`[^\d.\-]`)
)

// Extractor applies a document type's field rules to recognized text
type Extractor struct {
	registry *Registry
}

// NewExtractor uses the default registry when reg is nil.
func NewExtractor(reg *Registry) *Extractor {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Extractor{registry: reg}
}

// Registry returns the rules the extractor applies.
func (e *Extractor) Registry() *Registry {
	return e.registry
}

// Extract resolves every field declared for t. Fields that do not match
// hold their kind's sentinel with Found=false; nothing is ever omitted.
func (e *Extractor) Extract(text string, t DocumentType) FieldSet {
	rs := e.registry.RuleSet(t)
	text = strings.ReplaceAll(text, "\r\n", "\n")

	fields := make(FieldSet, len(rs.Fields))
	for i := range rs.Fields {
		rule := &rs.Fields[i]
		value, found := extractValue(text, rs.Type, rule)
		if !found {
			value = rule.Kind.zeroValue()
		}
		fields[rule.Name] = ExtractedField{
			Name:  rule.Name,
			Kind:  rule.Kind,
			Value: value,
			Found: found,
		}
	}
	return fields
}

func extractValue(text string, t DocumentType, rule *FieldRule) (any, bool) {
	switch rule.Kind {
	case KindText:
		s := strings.TrimSpace(firstCapture(rule.pattern, text))
		return s, s != ""
	case KindCurrency:
		return parseCurrency(firstCapture(rule.pattern, text))
	case KindDate:
		var s string
		if rule.pattern != nil {
			s = firstCapture(rule.pattern, text)
		} else {
			s = datePattern.FindString(text)
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	case KindLineItemList:
		items := lineItems(text, rule)
		return items, len(items) > 0
	case KindRaw:
		s := strings.TrimSpace(text)
		return s, s != ""
	case KindType:
		return string(t), true
	}
	return nil, false
}

// firstCapture returns the first non-empty capture group of the leftmost
// match, or the whole match for patterns without groups.
func firstCapture(re *regexp.Regexp, text string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if len(m) == 1 {
		return m[0]
	}
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// parseCurrency strips separators, symbols and codes, then parses what is
// left. Anything unparseable is reported as not found.
func parseCurrency(raw string) (float64, bool) {
	cleaned := currencyNoise.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func lineItems(text string, rule *FieldRule) []string {
	keep := rule.pattern
	if keep == nil {
		keep = amountLine
	}
	limit := rule.Limit
	if limit <= 0 {
		limit = DefaultLineItemLimit
	}

	items := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !keep.MatchString(line) {
			continue
		}
		if rule.exclude != nil && rule.exclude.MatchString(line) {
			continue
		}
		items = append(items, line)
		if len(items) == limit {
			break
		}
	}
	return items
}

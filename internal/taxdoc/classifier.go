package taxdoc

import "strings"

// Classifier labels recognized text using the registry's keywords
type Classifier struct {
	registry *Registry
}

// NewClassifier uses the default registry when reg is nil.
func NewClassifier(reg *Registry) *Classifier {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Classifier{registry: reg}
}

// Classify returns the first label, in priority order, whose keywords occur
// in the text or the filename. General when nothing matches.
func (c *Classifier) Classify(text, filename string) DocumentType {
	text = strings.ToLower(text)
	filename = strings.ToLower(filename)

	for _, t := range priorityOrder {
		if t == General {
			break
		}
		if c.registry.RuleSet(t).matches(text, filename) {
			return t
		}
	}
	return General
}

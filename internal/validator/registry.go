package validator

// Registry maps rule keys to Rule implementations and keeps registration order,
// which is the order rules are applied in.
type Registry struct {
	rules map[string]Rule
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// DefaultRegistry returns a Registry holding every built-in rule.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, rule := range BuiltinRules() {
		r.Register(rule)
	}
	return r
}

// Register adds a rule to the registry, replacing any rule with the same key in place.
func (r *Registry) Register(rule Rule) {
	if _, exists := r.rules[rule.RuleKey()]; !exists {
		r.order = append(r.order, rule.RuleKey())
	}
	r.rules[rule.RuleKey()] = rule
}

// Get returns the rule for a given key, or nil if not found.
func (r *Registry) Get(key string) Rule {
	return r.rules[key]
}

// All returns all registered rules in registration order.
func (r *Registry) All() []Rule {
	out := make([]Rule, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.rules[key])
	}
	return out
}

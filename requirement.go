package payments

// RequirementConfig is the static payment configuration for a
// protected resource. PlanIDs must not be empty; that is a setup-time
// misconfiguration, not a per-request error.
type RequirementConfig struct {
	Scheme      string
	Network     Network
	PlanIDs     []string
	AgentID     string
	ResourceURL string
	HTTPVerb    string
}

// RequirementOverrides are request-specific values layered on top of
// the static configuration. An explicit plan id in the request takes
// priority over the configured defaults.
type RequirementOverrides struct {
	PlanID      string
	ResourceURL string
	HTTPVerb    string
}

// RequirementBuilder builds immutable PaymentRequirements for a
// configured resource.
type RequirementBuilder struct {
	config RequirementConfig
}

// NewRequirementBuilder validates the static configuration once at
// setup time.
func NewRequirementBuilder(config RequirementConfig) (*RequirementBuilder, error) {
	if len(config.PlanIDs) == 0 {
		return nil, &PaymentError{
			Code:    ErrCodeNoPlanConfigured,
			Message: "at least one plan id must be configured",
		}
	}
	if config.Scheme == "" {
		config.Scheme = "credits"
	}
	return &RequirementBuilder{config: config}, nil
}

// Build produces the requirement for one request. Pure and
// deterministic: same inputs, same output, no side effects.
func (b *RequirementBuilder) Build(overrides RequirementOverrides) PaymentRequirement {
	planIDs := b.config.PlanIDs
	if overrides.PlanID != "" {
		planIDs = []string{overrides.PlanID}
	}

	resourceURL := b.config.ResourceURL
	if overrides.ResourceURL != "" {
		resourceURL = overrides.ResourceURL
	}

	verb := b.config.HTTPVerb
	if overrides.HTTPVerb != "" {
		verb = overrides.HTTPVerb
	}

	// Copy the plan slice so callers cannot mutate the built value.
	plans := make([]string, len(planIDs))
	copy(plans, planIDs)

	return PaymentRequirement{
		Scheme:      b.config.Scheme,
		Network:     b.config.Network,
		PlanIDs:     plans,
		ResourceURL: resourceURL,
		AgentID:     b.config.AgentID,
		HTTPVerb:    verb,
	}
}

package payments

import "testing"

func TestRequirementBuilderRejectsNoPlans(t *testing.T) {
	_, err := NewRequirementBuilder(RequirementConfig{Network: "base-sepolia"})
	if ErrorCode(err) != ErrCodeNoPlanConfigured {
		t.Errorf("expected no_plan_configured, got %v", err)
	}
}

func TestRequirementBuilderDefaultScheme(t *testing.T) {
	b, err := NewRequirementBuilder(testConfig())
	if err != nil {
		t.Fatalf("NewRequirementBuilder: %v", err)
	}

	req := b.Build(RequirementOverrides{})
	if req.Scheme != "credits" {
		t.Errorf("expected credits scheme, got %q", req.Scheme)
	}
	if len(req.PlanIDs) != 1 || req.PlanIDs[0] != "plan-default" {
		t.Errorf("expected configured plan, got %v", req.PlanIDs)
	}
}

func TestRequirementBuilderOverrides(t *testing.T) {
	b, err := NewRequirementBuilder(RequirementConfig{
		Network:     "base-sepolia",
		PlanIDs:     []string{"plan-a", "plan-b"},
		ResourceURL: "https://api.example.com/work",
		HTTPVerb:    "POST",
	})
	if err != nil {
		t.Fatalf("NewRequirementBuilder: %v", err)
	}

	req := b.Build(RequirementOverrides{
		PlanID:   "plan-override",
		HTTPVerb: "GET",
	})
	if len(req.PlanIDs) != 1 || req.PlanIDs[0] != "plan-override" {
		t.Errorf("request plan id must replace configured plans, got %v", req.PlanIDs)
	}
	if req.HTTPVerb != "GET" {
		t.Errorf("expected GET, got %q", req.HTTPVerb)
	}
	if req.ResourceURL != "https://api.example.com/work" {
		t.Errorf("unoverridden fields keep configured values, got %q", req.ResourceURL)
	}
}

func TestRequirementBuilderCopiesPlanSlice(t *testing.T) {
	b, err := NewRequirementBuilder(testConfig())
	if err != nil {
		t.Fatalf("NewRequirementBuilder: %v", err)
	}

	first := b.Build(RequirementOverrides{})
	first.PlanIDs[0] = "mutated"

	second := b.Build(RequirementOverrides{})
	if second.PlanIDs[0] != "plan-default" {
		t.Error("built requirements must not share plan slices")
	}
}

// Package model provides capability-based model selection for the pipeline
// stages. Stages ask for a capability (planning, coding, writing) and the
// registry resolves it to configured endpoints with fallback chains.
package model

// Capability represents a semantic capability for model selection.
// Instead of specifying "gemini-flash", stages specify "planning" or "coding".
type Capability string

const (
	// CapabilityPlanning is for turning an intent into a structured UI plan.
	CapabilityPlanning Capability = "planning"

	// CapabilityCoding is for rendering a plan into component code.
	CapabilityCoding Capability = "coding"

	// CapabilityWriting is for short streamed prose such as explanations.
	CapabilityWriting Capability = "writing"

	// CapabilityFast is for quick responses, simple tasks.
	CapabilityFast Capability = "fast"
)

// Pipeline roles.
const (
	RolePlanner   = "planner"
	RoleGenerator = "generator"
	RoleExplainer = "explainer"
)

// RoleCapabilities maps pipeline roles to their default capability.
var RoleCapabilities = map[string]Capability{
	RolePlanner:   CapabilityPlanning,
	RoleGenerator: CapabilityCoding,
	RoleExplainer: CapabilityWriting,
}

// CapabilityForRole returns the default capability for a given role.
// Returns CapabilityFast for unknown roles.
func CapabilityForRole(role string) Capability {
	if cap, ok := RoleCapabilities[role]; ok {
		return cap
	}
	return CapabilityFast
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityPlanning, CapabilityCoding, CapabilityWriting, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	cap := Capability(s)
	if cap.IsValid() {
		return cap
	}
	return ""
}

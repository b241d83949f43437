package model

import "testing"

func TestCapabilityForRole(t *testing.T) {
	tests := []struct {
		role string
		want Capability
	}{
		{RolePlanner, CapabilityPlanning},
		{RoleGenerator, CapabilityCoding},
		{RoleExplainer, CapabilityWriting},
		{"unknown-role", CapabilityFast},
		{"", CapabilityFast},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			if got := CapabilityForRole(tt.role); got != tt.want {
				t.Errorf("CapabilityForRole(%q) = %q, want %q", tt.role, got, tt.want)
			}
		})
	}
}

func TestParseCapability(t *testing.T) {
	tests := []struct {
		input string
		want  Capability
	}{
		{"planning", CapabilityPlanning},
		{"coding", CapabilityCoding},
		{"writing", CapabilityWriting},
		{"fast", CapabilityFast},
		{"reviewing", ""},
		{"Planning", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseCapability(tt.input)
			if got != tt.want {
				t.Errorf("ParseCapability(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if tt.want != "" && !got.IsValid() {
				t.Errorf("%q should be valid", got)
			}
		})
	}
}

package plugin

// CapabilitySet centralises capability declarations for plugins.
type CapabilitySet struct {
	EmitFeatures bool
	AddChildren  bool
	AddStreams   bool
}

// List returns the enabled capabilities.
func (s CapabilitySet) List() []Capability {
	caps := make([]Capability, 0, 3)
	if s.EmitFeatures {
		caps = append(caps, CapabilityEmitFeatures)
	}
	if s.AddChildren {
		caps = append(caps, CapabilityAddChildren)
	}
	if s.AddStreams {
		caps = append(caps, CapabilityAddStreams)
	}
	return caps
}

// Enabled reports whether the provided capability is present in the set.
func (s CapabilitySet) Enabled(cap Capability) bool {
	switch cap {
	case CapabilityEmitFeatures:
		return s.EmitFeatures
	case CapabilityAddChildren:
		return s.AddChildren
	case CapabilityAddStreams:
		return s.AddStreams
	default:
		return false
	}
}

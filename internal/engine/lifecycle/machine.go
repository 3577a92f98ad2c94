package lifecycle

import (
	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/zerr"
)

// Machine tracks the lifecycle phase of one target instance.
// Phases only move forward, one at a time. Detect is only valid as the first phase.
type Machine struct {
	phase domain.Phase
}

// Phase returns the last phase entered, or zero before the first one.
func (m *Machine) Phase() domain.Phase {
	return m.phase
}

// Advance enters next or fails with domain.ErrInvalidTransition.
func (m *Machine) Advance(next domain.Phase) error {
	valid := false
	switch m.phase {
	case 0:
		valid = next == domain.PhaseDetect || next == domain.PhaseSourceAcquired
	case domain.PhasePostBuilt:
	default:
		valid = next == m.phase+1
	}

	if !valid {
		err := zerr.With(zerr.Wrap(domain.ErrInvalidTransition, "cannot enter "+next.String()), "from", m.phase.String())
		return zerr.With(err, "to", next.String())
	}
	m.phase = next
	return nil
}

package domain

// Phase is a step of the target lifecycle.
type Phase int

const (
	// PhaseDetect inspects an external source tree. It is optional.
	PhaseDetect Phase = iota + 1
	// PhaseSourceAcquired means the source tree is checked out or extracted.
	PhaseSourceAcquired
	// PhaseConfigured means the build directory and environment are ready.
	PhaseConfigured
	// PhaseBuilt means the build tool finished compiling.
	PhaseBuilt
	// PhasePostBuilt means artifacts are installed.
	PhasePostBuilt
)

func (p Phase) String() string {
	switch p {
	case PhaseDetect:
		return "detect"
	case PhaseSourceAcquired:
		return "source"
	case PhaseConfigured:
		return "configure"
	case PhaseBuilt:
		return "build"
	case PhasePostBuilt:
		return "install"
	default:
		return "none"
	}
}

package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/unibuild/internal/adapters/detector"
)

func TestDetectEnvironment_CI(t *testing.T) {
	for _, ci := range []string{"true", "1"} {
		t.Run("CI="+ci, func(t *testing.T) {
			t.Setenv("CI", ci)
			assert.Equal(t, detector.ModeLinear, detector.DetectEnvironment())
		})
	}
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name     string
		auto     detector.OutputMode
		flag     string
		expected detector.OutputMode
	}{
		{name: "empty keeps detection", auto: detector.ModeInteractive, flag: "", expected: detector.ModeInteractive},
		{name: "auto keeps detection", auto: detector.ModeLinear, flag: "auto", expected: detector.ModeLinear},
		{name: "linear forces linear", auto: detector.ModeInteractive, flag: "linear", expected: detector.ModeLinear},
		{name: "ci forces linear", auto: detector.ModeInteractive, flag: "ci", expected: detector.ModeLinear},
		{name: "unknown keeps detection", auto: detector.ModeInteractive, flag: "fancy", expected: detector.ModeInteractive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detector.ResolveMode(tt.auto, tt.flag))
		})
	}
}

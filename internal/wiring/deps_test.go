package wiring_test

import (
	"testing"

	"github.com/grindlemire/graft"
)

// Every graft node under internal/ must declare exactly the dependencies it resolves.
func TestGraftDependencies(t *testing.T) {
	graft.AssertDepsValid(t, "../../internal")
}

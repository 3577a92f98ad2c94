package domain

import (
	"io"
	"strings"
)

// Command is an external tool invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds KEY=VALUE entries layered over the inherited environment.
	Env []string
	// Stdout receives the combined tool output. Nil routes it to the logger.
	Stdout io.Writer
}

// String renders the command line for messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

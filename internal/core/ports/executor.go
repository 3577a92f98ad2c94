// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/unibuild/internal/core/domain"
)

// Executor runs external tools.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Run executes cmd and streams its output to cmd.Stdout.
	// A non-zero exit status is reported as domain.ErrCommandFailed with an exit_code.
	Run(ctx context.Context, cmd domain.Command) error

	// Output executes cmd and returns its standard output.
	Output(ctx context.Context, cmd domain.Command) ([]byte, error)
}

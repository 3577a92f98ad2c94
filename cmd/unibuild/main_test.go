package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/unibuild/internal/app"
	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/unibuild/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

type appMocks struct {
	settings *mocks.MockSettingsLoader
	logger   *mocks.MockLogger
}

func newTestApp(ctrl *gomock.Controller) (*app.App, *appMocks) {
	m := &appMocks{
		settings: mocks.NewMockSettingsLoader(ctrl),
		logger:   mocks.NewMockLogger(ctrl),
	}
	application := app.New(
		m.settings,
		mocks.NewMockCatalogLoader(ctrl),
		mocks.NewMockExecutor(ctrl),
		mocks.NewMockFetcher(ctrl),
		mocks.NewMockArchiver(ctrl),
		mocks.NewMockVCS(ctrl),
		mocks.NewMockHasher(ctrl),
		m.logger,
		mocks.NewMockReceiptStore(ctrl),
	)
	return application, m
}

func provide(a *app.App, m *appMocks) ComponentProvider {
	return func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{App: a, Logger: m.logger}, func() {}, nil
	}
}

func chdirTemp(t *testing.T) {
	t.Helper()
	cwd, _ := os.Getwd()
	_ = os.Chdir(t.TempDir())
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	application, m := newTestApp(ctrl)

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provide(application, m))
	assert.Equal(t, 0, exitCode)
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_ExecutionError verifies that failures are logged and exit with 1.
func TestRun_ExecutionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	application, m := newTestApp(ctrl)
	chdirTemp(t)

	m.settings.EXPECT().Load(gomock.Any()).Return(nil, domain.ErrConfigParseFailed)
	m.logger.EXPECT().Error(gomock.Any()).Do(func(err error) {
		assert.True(t, errors.Is(err, domain.ErrConfigParseFailed))
	})

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"build", "--target", "zstd"}, stderr, provide(application, m),
		func(a *app.App) {
			a.WithOutput(io.Discard, io.Discard)
		})

	assert.Equal(t, 1, exitCode)
}

// TestRun_UsageError verifies that flag validation failures exit with 1.
func TestRun_UsageError(t *testing.T) {
	ctrl := gomock.NewController(t)
	application, m := newTestApp(ctrl)
	m.logger.EXPECT().Error(gomock.Any()).Times(1)

	exitCode := run(context.Background(), []string{"build"}, io.Discard, provide(application, m))
	assert.Equal(t, 1, exitCode)
}

// TestRun_Signal verifies that the context is canceled on signal.
func TestRun_Signal(t *testing.T) {
	ctrl := gomock.NewController(t)
	application, m := newTestApp(ctrl)
	chdirTemp(t)

	blockCh := make(chan struct{})
	m.settings.EXPECT().Load(gomock.Any()).DoAndReturn(func(_ string) (*domain.Settings, error) {
		select {
		case <-blockCh:
			return nil, context.Canceled
		case <-time.After(5 * time.Second):
			return nil, errors.New("timeout in mock")
		}
	})
	m.logger.EXPECT().Error(gomock.Any()).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan int)

	go func() {
		errCh <- run(ctx, []string{"build", "--target", "zstd"}, io.Discard, provide(application, m))
	}()

	// Wait a bit to ensure run() reaches Load()
	time.Sleep(100 * time.Millisecond)

	cancel()
	close(blockCh)

	select {
	case ret := <-errCh:
		assert.NotEqual(t, 0, ret)
	case <-time.After(2 * time.Second):
		t.Fatal("TestRun_Signal timed out waiting for run() to return")
	}
}

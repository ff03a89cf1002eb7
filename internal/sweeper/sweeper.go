package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/logger"
)

// Sweeper is a long-running background task that performs periodic maintenance
//
//go:generate mockgen -source=sweeper.go -destination=../mocks/sweeper.go -package=mocks -mock_names=Sweeper=MockSweeper
type Sweeper interface {
	// Start runs the main loop until the context is canceled or Stop is called
	Start(ctx context.Context) error

	// Stop waits for in-flight work, or for ctx to expire
	Stop(ctx context.Context) error

	// Name identifies the sweeper in logs
	Name() string
}

// Run starts s and stops it once ctx is done or Start returns.
// Stop is given stopTimeout to drain in-flight work. A failed Start is returned.
func Run(ctx context.Context, s Sweeper, stopTimeout time.Duration) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errChan:
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		logger.ErrorCtx(stopCtx, fmt.Errorf("failed to stop %s: %w", s.Name(), err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("%s failed: %w", s.Name(), runErr)
	}
	logger.InfoCtx(stopCtx, "Sweeper finished", zap.String("name", s.Name()))
	return nil
}

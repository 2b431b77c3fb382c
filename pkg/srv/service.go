package srv

import (
	"context"
	"errors"

	"github.com/sandevgo/tuskmem/pkg/log"
	"golang.org/x/sync/errgroup"
)

type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Run starts every service and blocks until ctx is done or one of them
// returns from Start. Services are then shut down in reverse order.
func Run(ctx context.Context, services ...Service) error {
	logger := log.FromCtx(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	for _, service := range services {
		g.Go(func() error {
			defer cancel()
			if err := service.Start(gctx); err != nil {
				logger.Error().Err(err).Msgf("%T stopped with error", service)
				return err
			}
			return nil
		})
	}

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	// Shutdown gets a fresh context: ctx is already done here
	shutdownCtx := context.WithoutCancel(ctx)
	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msgf("%T failed to shutdown", services[i])
			errs = append(errs, err)
		}
	}

	return errors.Join(append([]error{runErr}, errs...)...)
}

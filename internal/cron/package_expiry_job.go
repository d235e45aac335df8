package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/laboutiquedemorgane/boutique-backend/pkg/logger"
)

// packageSweeper is the slice of the package service this job needs.
type packageSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
	EmitClosingWarnings(ctx context.Context) (int, error)
}

// PackageExpiryJobParams configure the window sweeper.
type PackageExpiryJobParams struct {
	Logger   *logger.Logger
	Packages packageSweeper
}

// NewPackageExpiryJob builds the job that settles lapsed aggregation windows
// and queues closing warnings for the ones about to lapse.
func NewPackageExpiryJob(params PackageExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Packages == nil {
		return nil, fmt.Errorf("package service required")
	}
	return &packageExpiryJob{
		logg:     params.Logger,
		packages: params.Packages,
	}, nil
}

type packageExpiryJob struct {
	logg     *logger.Logger
	packages packageSweeper
}

func (j *packageExpiryJob) Name() string { return "package-expiry" }

func (j *packageExpiryJob) Run(ctx context.Context) error {
	var errs []error

	closed, err := j.packages.SweepExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("sweep expired packages: %w", err))
	} else {
		logCtx := j.logg.WithField(ctx, "closed", closed)
		j.logg.Info(logCtx, "expired package sweep complete")
	}

	warned, err := j.packages.EmitClosingWarnings(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("emit closing warnings: %w", err))
	} else {
		logCtx := j.logg.WithField(ctx, "warned", warned)
		j.logg.Info(logCtx, "closing warning loop complete")
	}

	return multierr.Combine(errs...)
}

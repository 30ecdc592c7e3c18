package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwhitfield/vigil/internal/geo"
	"github.com/mwhitfield/vigil/internal/models"
	pkglogger "github.com/mwhitfield/vigil/pkg/logger"
)

// AnomalyAttemptSource is the slice of the attempt ledger the detector reads
type AnomalyAttemptSource interface {
	GetLastSuccess(ctx context.Context, email string, before time.Time) (*models.LoginAttempt, error)
}

// TravelFinding describes a successful login that happened implausibly far
// from the previous one
type TravelFinding struct {
	Previous   *models.LoginAttempt
	DistanceKm float64
	Elapsed    time.Duration
	SpeedKmh   float64
}

// Details flattens the finding for audit and alert payloads
func (f *TravelFinding) Details() map[string]string {
	details := map[string]string{
		"distance_km":     fmt.Sprintf("%.1f", f.DistanceKm),
		"elapsed_minutes": fmt.Sprintf("%.1f", f.Elapsed.Minutes()),
		"speed_kmh":       fmt.Sprintf("%.0f", f.SpeedKmh),
	}
	if f.Previous != nil {
		details["previous_ip"] = f.Previous.IPAddress
		if f.Previous.City != nil {
			details["previous_city"] = *f.Previous.City
		}
		if f.Previous.Country != nil {
			details["previous_country"] = *f.Previous.Country
		}
	}
	return details
}

// AnomalyService flags impossible travel between consecutive successful
// logins. Findings are informational and never block a login.
type AnomalyService struct {
	attempts          AnomalyAttemptSource
	speedThresholdKmh float64
	minElapsed        time.Duration
	logger            *slog.Logger
}

// NewAnomalyService creates a new impossible travel detector
func NewAnomalyService(attempts AnomalyAttemptSource, speedThresholdKmh float64, minElapsed time.Duration, logger *slog.Logger) *AnomalyService {
	if speedThresholdKmh <= 0 {
		speedThresholdKmh = 1000
	}
	if minElapsed <= 0 {
		minElapsed = 2 * time.Minute
	}

	return &AnomalyService{
		attempts:          attempts,
		speedThresholdKmh: speedThresholdKmh,
		minElapsed:        minElapsed,
		logger:            logger,
	}
}

// Inspect compares a successful login against the most recent prior success
// for the same email. It returns nil when nothing looks wrong, when either
// side lacks coordinates, or when the ledger cannot be read. Errors are
// logged and swallowed so detection never affects the login outcome.
func (s *AnomalyService) Inspect(ctx context.Context, current *models.LoginAttempt) *TravelFinding {
	if current == nil || !current.HasLocation() {
		return nil
	}

	previous, err := s.attempts.GetLastSuccess(ctx, current.Email, current.AttemptedAt)
	if err != nil {
		s.logger.WarnContext(ctx, "impossible travel check skipped",
			slog.String("email", pkglogger.SanitizedEmail(current.Email)),
			slog.Any("error", err),
		)
		return nil
	}
	if previous == nil || !previous.HasLocation() {
		return nil
	}

	elapsed := current.AttemptedAt.Sub(previous.AttemptedAt)
	if elapsed < 0 {
		return nil
	}

	distance := geo.DistanceKm(*previous.Latitude, *previous.Longitude, *current.Latitude, *current.Longitude)

	// Clamp very short gaps so two logins seconds apart do not produce an
	// absurd speed from a rounding-level distance.
	effective := elapsed
	if effective < s.minElapsed {
		effective = s.minElapsed
	}

	speed := distance / effective.Hours()
	if speed <= s.speedThresholdKmh {
		return nil
	}

	s.logger.InfoContext(ctx, "impossible travel detected",
		slog.String("email", pkglogger.SanitizedEmail(current.Email)),
		slog.Float64("distance_km", distance),
		slog.Float64("speed_kmh", speed),
	)

	return &TravelFinding{
		Previous:   previous,
		DistanceKm: distance,
		Elapsed:    elapsed,
		SpeedKmh:   speed,
	}
}

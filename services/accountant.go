package services

import (
	"context"
	"errors"
	"net"

	"ksl-notify/utils"
)

// ErrorClass is the closed set of failure categories the poll loop
// distinguishes.
type ErrorClass int

const (
	// ErrorSoft is the expected-transient class (network timeouts talking
	// to the search backend). Tracked, never individually alerted.
	ErrorSoft ErrorClass = iota
	// ErrorHard is everything else raised during a pass.
	ErrorHard
	// ErrorInterrupt is a user-initiated shutdown; never accounted.
	ErrorInterrupt
)

// Classify buckets a pass-level error into soft, hard, or interrupt.
func Classify(err error) ErrorClass {
	if errors.Is(err, context.Canceled) {
		return ErrorInterrupt
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorSoft
	}
	return ErrorHard
}

// Alerter sends a best-effort operator alert. *mailer.Mailer satisfies it.
type Alerter interface {
	SendAlert(queries []string, cause error, count int) error
}

// AccountantConfig holds the penalty weights and escalation thresholds.
type AccountantConfig struct {
	SoftPenalty    int
	HardPenalty    int
	AlertThreshold int
	FatalThreshold int
}

// DefaultAccountantConfig derives the thresholds from the configured
// exceptions-per-alert setting (--emailexceptions).
func DefaultAccountantConfig(exceptionsPerAlert int) AccountantConfig {
	return AccountantConfig{
		SoftPenalty:    10,
		HardPenalty:    10,
		AlertThreshold: exceptionsPerAlert * 10,
		FatalThreshold: 100,
	}
}

// FailureAccountant keeps a rolling severity counter across poll passes.
// Errors add their penalty, clean passes bleed the counter back down, and
// two thresholds decide when to warn the operator and when to give up.
type FailureAccountant struct {
	cfg     AccountantConfig
	count   int
	queries []string
	alerter Alerter
	logger  *utils.Logger
}

// NewFailureAccountant creates an accountant. alerter may be nil, in which
// case crossings are logged but no email is attempted.
func NewFailureAccountant(cfg AccountantConfig, queries []string, alerter Alerter, logger *utils.Logger) *FailureAccountant {
	return &FailureAccountant{
		cfg:     cfg,
		queries: queries,
		alerter: alerter,
		logger:  logger,
	}
}

// Count returns the current counter value.
func (a *FailureAccountant) Count() int {
	return a.count
}

// OnSuccess bleeds the counter down by one after a clean pass.
func (a *FailureAccountant) OnSuccess() {
	if a.count > 0 {
		a.count--
	}
}

// OnSoftError records an expected-transient failure. No alert: these are
// frequent enough that mailing each one would be noise. They still erode
// the same budget as hard failures.
func (a *FailureAccountant) OnSoftError(err error) {
	a.count += a.cfg.SoftPenalty
	a.logger.Debug("[accountant] soft error (count %d): %v", a.count, err)
}

// OnHardError records an unclassified failure, logs it, and once the
// counter exceeds the alert threshold attempts one operator alert. The
// alert is best effort: a failure to send it is logged and swallowed,
// never escalated.
func (a *FailureAccountant) OnHardError(err error) {
	a.count += a.cfg.HardPenalty
	a.logger.Error("[accountant] error in poll pass (count %d): %v", a.count, err)

	if a.count <= a.cfg.AlertThreshold || a.alerter == nil {
		return
	}
	if alertErr := a.alerter.SendAlert(a.queries, err, a.count); alertErr != nil {
		a.logger.Warn("[accountant] operator alert failed: %v", alertErr)
	}
}

// Fatal reports whether the counter has exceeded the fatal threshold.
// Sitting exactly on the threshold is still survivable.
func (a *FailureAccountant) Fatal() bool {
	return a.count > a.cfg.FatalThreshold
}

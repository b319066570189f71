package circuitbreaker

import (
	"replybot/internal/config"
)

// FromConfig returns nil when the breaker is disabled; callers treat a nil
// *Wrapper as a pass-through.
func FromConfig(name string, cfg config.CircuitBreakerConfig) *Wrapper {
	if !cfg.Enabled {
		return nil
	}

	cbConfig := DefaultConfig(name)
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = RatioConfig(name, cbConfig.MaxRequests, cbConfig.Interval, cbConfig.Timeout, cfg.FailureRatio, cfg.MinRequests).ReadyToTrip
	}

	return NewWrapper(cbConfig)
}

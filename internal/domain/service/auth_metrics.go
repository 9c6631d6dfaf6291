package service

// AuthMetrics records the outcome of identity operations.
// Outcome is "success" or the business error code of the failure.
type AuthMetrics interface {
	ObserveAuthEvent(operation, outcome string)
	ObserveVerificationPublish(provider string, err error)
}

package application

// Metrics receives domain counters from the services.
type Metrics interface {
	ScanStarted(scanType string)
	// ScanFinished records the outcome of a session: completed, stopped or failed.
	ScanFinished(scanType, outcome string)
	ThreatDetected(severity string)
	ThreatResolved(action string)
}

type NopMetrics struct{}

func (NopMetrics) ScanStarted(string)          {}
func (NopMetrics) ScanFinished(string, string) {}
func (NopMetrics) ThreatDetected(string)       {}
func (NopMetrics) ThreatResolved(string)       {}

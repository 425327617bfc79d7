// Package metrics records what the persistent stores do with their medium.
package metrics

// Recorder receives store events. Every method is keyed by storage key.
type Recorder interface {
	IncNotification(key string)
	IncPersist(key string)
	IncPersistFailure(key string)
	IncReconciliation(key string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) IncNotification(string)   {}
func (NoopRecorder) IncPersist(string)        {}
func (NoopRecorder) IncPersistFailure(string) {}
func (NoopRecorder) IncReconciliation(string) {}

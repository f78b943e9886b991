package logger

import (
	"sync"
	"time"
)

// StageDuration is the measured wall-clock time of one named stage.
type StageDuration struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// OperationLogger logs a multi-stage operation and keeps the duration of
// each stage so callers can report them.
type OperationLogger struct {
	logger    Logger
	operation string
	fields    Fields
	startTime time.Time

	mu     sync.Mutex
	stages []StageDuration
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger.WithComponent("operation"),
		operation: operation,
		fields:    make(Fields),
		startTime: time.Now(),
	}

	ol.logger.WithField("operation", operation).Debug("Starting operation")
	return ol
}

// WithField adds a field to the operation context
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.mu.Lock()
	defer ol.mu.Unlock()
	ol.fields[key] = value
	return ol
}

// Stage starts timing a stage. The returned function ends it.
func (ol *OperationLogger) Stage(stage string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)

		ol.mu.Lock()
		ol.stages = append(ol.stages, StageDuration{Stage: stage, Duration: elapsed})
		fields := ol.fieldsLocked()
		ol.mu.Unlock()

		fields["step"] = stage
		fields["duration"] = elapsed.String()
		ol.logger.WithFields(fields).Debug("Operation step")
	}
}

// Stages returns the stages completed so far, in completion order.
func (ol *OperationLogger) Stages() []StageDuration {
	ol.mu.Lock()
	defer ol.mu.Unlock()

	out := make([]StageDuration, len(ol.stages))
	copy(out, ol.stages)
	return out
}

// Elapsed returns the time since the operation started.
func (ol *OperationLogger) Elapsed() time.Duration {
	return time.Since(ol.startTime)
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string) {
	ol.mu.Lock()
	fields := ol.fieldsLocked()
	ol.mu.Unlock()

	fields["duration"] = ol.Elapsed().String()
	fields["status"] = "success"
	ol.logger.WithFields(fields).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	ol.mu.Lock()
	fields := ol.fieldsLocked()
	ol.mu.Unlock()

	fields["duration"] = ol.Elapsed().String()
	fields["status"] = "error"
	ol.logger.WithError(err).WithFields(fields).Error(message)
}

// Warning logs a warning during the operation
func (ol *OperationLogger) Warning(err error, message string) {
	ol.mu.Lock()
	fields := ol.fieldsLocked()
	ol.mu.Unlock()

	entry := ol.logger.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(message)
}

func (ol *OperationLogger) fieldsLocked() Fields {
	fields := Fields{"operation": ol.operation}
	for k, v := range ol.fields {
		fields[k] = v
	}
	return fields
}

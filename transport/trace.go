package transport

import (
	"context"
	"time"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type traceKey struct{}

// ClientTrace is a set of hooks run at the stages of a transport's life.
// Any hook may be nil.
type ClientTrace struct {
	// DialStart runs before a connection to target is attempted.
	DialStart func(target string)
	// DialDone runs once the transport is usable or the attempt failed.
	DialDone func(target string, err error, d time.Duration)
	// Received runs after each read with the bytes that arrived.
	Received func(target string, data []byte, err error, d time.Duration)
	// Sent runs after each write with the bytes that were written.
	Sent func(target string, data []byte, err error, d time.Duration)
	// Closed runs once the transport has been released.
	Closed func(target string, err error)
	// Error runs when op against target failed.
	Error func(op, target string, err error)
}

// WithClientTrace returns a copy of ctx carrying trace. Transports opened with the
// returned context report to trace.
func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	return context.WithValue(ctx, traceKey{}, trace)
}

// ContextClientTrace returns the trace carried by ctx with its unset hooks
// filled in as no-ops, or NoOpHooks when ctx carries none.
func ContextClientTrace(ctx context.Context) *ClientTrace {
	trace, _ := ctx.Value(traceKey{}).(*ClientTrace)
	if trace == nil {
		return NoOpHooks
	}
	filled := *trace
	_ = mergo.Merge(&filled, NoOpHooks)
	return &filled
}

// NoOpHooks ignores every event.
var NoOpHooks = &ClientTrace{
	DialStart: func(string) {},
	DialDone:  func(string, error, time.Duration) {},
	Received:  func(string, []byte, error, time.Duration) {},
	Sent:      func(string, []byte, error, time.Duration) {},
	Closed:    func(string, error) {},
	Error:     func(string, string, error) {},
}

// Trace levels accepted by TraceHooks.
const (
	TraceOff        = "off"
	TraceErrors     = "errors"
	TraceMetrics    = "metrics"
	TraceDiagnostic = "diagnostic"
)

// TraceHooks returns hooks that report to log at the named level. Errors are
// logged at every level but off; metrics adds dial and I/O timings at info;
// diagnostic logs the bytes exchanged at debug.
func TraceHooks(level string, log logrus.FieldLogger) (*ClientTrace, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch level {
	case TraceOff:
		return NoOpHooks, nil
	case "", TraceErrors:
		return errorHooks(log), nil
	case TraceMetrics:
		return metricHooks(log), nil
	case TraceDiagnostic:
		return diagnosticHooks(log), nil
	}
	return nil, errors.Errorf("unknown trace level %q", level)
}

func errorHooks(log logrus.FieldLogger) *ClientTrace {
	return &ClientTrace{
		Error: func(op, target string, err error) {
			log.WithFields(logrus.Fields{"op": op, "target": target}).WithError(err).Error("transport failure")
		},
	}
}

func metricHooks(log logrus.FieldLogger) *ClientTrace {
	trace := errorHooks(log)
	trace.DialDone = func(target string, err error, d time.Duration) {
		log.WithFields(logrus.Fields{"target": target, "elapsed": d, "ok": err == nil}).Info("dialed")
	}
	io := func(msg string) func(string, []byte, error, time.Duration) {
		return func(target string, data []byte, err error, d time.Duration) {
			log.WithFields(logrus.Fields{"target": target, "bytes": len(data), "elapsed": d}).Info(msg)
		}
	}
	trace.Received, trace.Sent = io("received"), io("sent")
	return trace
}

func diagnosticHooks(log logrus.FieldLogger) *ClientTrace {
	trace := metricHooks(log)
	trace.DialStart = func(target string) {
		log.WithField("target", target).Debug("dialing")
	}
	trace.Received = func(target string, data []byte, err error, d time.Duration) {
		log.WithField("target", target).WithError(err).Debugf("<<< %q", data)
	}
	trace.Sent = func(target string, data []byte, err error, d time.Duration) {
		log.WithField("target", target).WithError(err).Debugf(">>> %q", data)
	}
	trace.Closed = func(target string, err error) {
		log.WithField("target", target).WithError(err).Debug("closed")
	}
	return trace
}

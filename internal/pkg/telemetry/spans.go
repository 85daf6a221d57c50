package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/samirrijal/superres"

// Span names used for instrumentation.
const (
	SpanJobExecute    = "job.execute"
	SpanJobPrepare    = "job.prepare"
	SpanInferenceRun  = "inference.run"
	SpanJobCollect    = "job.collect"
	SpanArchiveBundle = "artifacts.bundle"
)

// Attribute keys attached to spans.
const (
	AttrJobID         = "superres.job.id"
	AttrJobDate       = "superres.job.date"
	AttrLatitude      = "superres.location.lat"
	AttrLongitude     = "superres.location.lon"
	AttrArtifactCount = "superres.artifacts.count"
	AttrArtifactBytes = "superres.artifacts.bytes"
	AttrErrorKind     = "superres.error.kind"
)

// Tracer returns the service tracer from the global provider. Until
// InitTracer runs this is a no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

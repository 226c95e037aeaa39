package engine

import "go.opentelemetry.io/otel"

// tracerName identifies this package's spans to whatever exporter
// internal/telemetry.InitTracer registered. Grounded on the teacher's
// internal/telemetry/lookuptrace, which only ever created spans around
// Lookup and FindSuccessor: the relay transport has no RPC boundary to
// hang a grpc.UnaryServerInterceptor off of, so the span start/end
// calls live directly in the two functions that played that role here.
const tracerName = "chordmesh/engine"

var tracer = otel.Tracer(tracerName)

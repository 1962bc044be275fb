package otelhelper_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanAndSetError(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := otelhelper.StartSpan(context.Background(), tracer, "editor.save",
		attribute.String(otelhelper.WorkflowIDKey, "wf-1"))
	otelhelper.SetError(span, errors.New("disk full"), attribute.String(otelhelper.StepIDKey, "s1"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	got := spans[0]
	assert.Equal(t, "editor.save", got.Name())
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "disk full", got.Status().Description)
	assert.Contains(t, got.Attributes(), attribute.String(otelhelper.WorkflowIDKey, "wf-1"))

	var names []string
	for _, e := range got.Events() {
		names = append(names, e.Name)
	}

	assert.Contains(t, names, "error_occurred")
}

// Package metrics exposes the call counters and latency histograms over
// OpenTelemetry, with a Prometheus scrape handler for the server.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// CallMetrics carries every instrument the call supervisor records into.
type CallMetrics struct {
	ChunksIn      metric.Int64Counter
	ChunksOut     metric.Int64Counter
	FramesDropped metric.Int64Counter
	FillersPlayed metric.Int64Counter
	Interruptions metric.Int64Counter
	Reconnects    metric.Int64Counter
	CallsStarted  metric.Int64Counter
	CallsEnded    metric.Int64Counter

	// FirstAudioMs measures model thinking latency: end of user speech to
	// first model audio chunk.
	FirstAudioMs metric.Float64Histogram
}

// New builds the instrument set on the given meter.
func New(meter metric.Meter) (*CallMetrics, error) {
	m := &CallMetrics{}
	var err error

	if m.ChunksIn, err = meter.Int64Counter("voicecore.audio.chunks_in",
		metric.WithDescription("Inbound carrier audio chunks")); err != nil {
		return nil, err
	}
	if m.ChunksOut, err = meter.Int64Counter("voicecore.audio.chunks_out",
		metric.WithDescription("Outbound carrier audio chunks")); err != nil {
		return nil, err
	}
	if m.FramesDropped, err = meter.Int64Counter("voicecore.audio.frames_dropped",
		metric.WithDescription("Undecodable inbound frames dropped")); err != nil {
		return nil, err
	}
	if m.FillersPlayed, err = meter.Int64Counter("voicecore.hedge.fillers_played",
		metric.WithDescription("Filler playbacks started")); err != nil {
		return nil, err
	}
	if m.Interruptions, err = meter.Int64Counter("voicecore.call.interruptions",
		metric.WithDescription("User barge-ins while the agent was speaking")); err != nil {
		return nil, err
	}
	if m.Reconnects, err = meter.Int64Counter("voicecore.session.reconnects",
		metric.WithDescription("Model session reconnect attempts")); err != nil {
		return nil, err
	}
	if m.CallsStarted, err = meter.Int64Counter("voicecore.call.started",
		metric.WithDescription("Calls answered")); err != nil {
		return nil, err
	}
	if m.CallsEnded, err = meter.Int64Counter("voicecore.call.ended",
		metric.WithDescription("Calls ended, by status")); err != nil {
		return nil, err
	}
	if m.FirstAudioMs, err = meter.Float64Histogram("voicecore.session.first_audio_ms",
		metric.WithDescription("End of user speech to first model audio"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return m, nil
}

// NewPrometheus builds the instruments on a Prometheus-exporting meter
// provider and returns the scrape handler to mount at /metrics.
func NewPrometheus() (*CallMetrics, http.Handler, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	m, err := New(provider.Meter("voicecore"))
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.Handler(), nil
}

// CallEnded records a call completion with its final status attribute.
func (m *CallMetrics) CallEnded(ctx context.Context, status string) {
	m.CallsEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

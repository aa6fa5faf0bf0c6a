// Package metrics defines the provider abstraction the broker instruments
// against, with Prometheus and OpenTelemetry backends plus a noop. Backend
// selection happens once in the broker config; subsystems only ever see the
// Provider interface.
package metrics

import "context"

// Provider creates instruments.
type Provider interface {
	NewCounter(opts CounterOpts) Counter
	NewGauge(opts GaugeOpts) Gauge
	NewHistogram(opts HistogramOpts) Histogram
	NewTimer(h HistogramOpts) func() Timer
	Health(ctx context.Context) error
}

type Counter interface {
	Inc(delta float64, labels ...string)
}

type Gauge interface {
	Set(v float64, labels ...string)
	Add(delta float64, labels ...string)
}

type Histogram interface {
	Observe(v float64, labels ...string)
}

type Timer interface {
	ObserveDuration(labels ...string)
}

// CommonOpts names an instrument. The fully qualified name is
// namespace_subsystem_name (Prometheus) or dotted (OTEL).
type CommonOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

type CounterOpts struct{ CommonOpts }
type GaugeOpts struct{ CommonOpts }
type HistogramOpts struct {
	CommonOpts
	Buckets []float64
}

// noop backend ---------------------------------------------------------------

type noopProvider struct{}
type noopCounter struct{}
type noopGauge struct{}
type noopHistogram struct{}
type noopTimer struct{}

// NewNoopProvider returns a provider whose instruments record nothing.
func NewNoopProvider() Provider { return &noopProvider{} }

func (*noopProvider) NewCounter(CounterOpts) Counter       { return noopCounter{} }
func (*noopProvider) NewGauge(GaugeOpts) Gauge             { return noopGauge{} }
func (*noopProvider) NewHistogram(HistogramOpts) Histogram { return noopHistogram{} }
func (*noopProvider) NewTimer(HistogramOpts) func() Timer {
	return func() Timer { return noopTimer{} }
}
func (*noopProvider) Health(context.Context) error { return nil }

func (noopCounter) Inc(float64, ...string)       {}
func (noopGauge) Set(float64, ...string)         {}
func (noopGauge) Add(float64, ...string)         {}
func (noopHistogram) Observe(float64, ...string) {}
func (noopTimer) ObserveDuration(...string)      {}

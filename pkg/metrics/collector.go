package metrics

import (
	"context"
	"fmt"

	"github.com/dbehnke/btbb-nexus/pkg/sniffer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Collector collects BTBB-Nexus metrics in a private registry. It
// implements sniffer.Sink and sniffer.SummarySink.
type Collector struct {
	registry *prometheus.Registry

	// Scan metrics
	scans        prometheus.Counter
	bitsScanned  prometheus.Counter
	scanDuration prometheus.Histogram

	// Packet metrics
	accessCodes    *prometheus.CounterVec // label: lap
	headersDecoded *prometheus.CounterVec // label: type
	hecFailures    prometheus.Counter

	// Piconet metrics
	piconetsActive prometheus.Gauge
}

// Stats is a point in time read of the collector
type Stats struct {
	Scans          uint64 `json:"scans"`
	BitsScanned    uint64 `json:"bits_scanned"`
	AccessCodes    uint64 `json:"access_codes"`
	HeadersDecoded uint64 `json:"headers_decoded"`
	HECFailures    uint64 `json:"hec_failures"`
	PiconetsActive int    `json:"piconets_active"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		scans: factory.NewCounter(prometheus.CounterOpts{
			Name: "btbb_scans_total",
			Help: "Total capture scans completed",
		}),
		bitsScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "btbb_bits_scanned_total",
			Help: "Total demodulated bits searched for access codes",
		}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "btbb_scan_duration_seconds",
			Help:    "Wall time of a capture scan",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		accessCodes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "btbb_access_codes_total",
			Help: "Access codes found, by LAP",
		}, []string{"lap"}),
		headersDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "btbb_headers_decoded_total",
			Help: "Packet headers decoded, by packet type",
		}, []string{"type"}),
		hecFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "btbb_hec_failures_total",
			Help: "Headers whose HEC did not match the UAP",
		}),
		piconetsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "btbb_piconets_active",
			Help: "Piconets currently tracked",
		}),
	}
}

// Registry returns the private registry the collector writes to
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// HandlePacket records an access code hit and its header
func (c *Collector) HandlePacket(ctx context.Context, p sniffer.Packet) {
	c.accessCodes.WithLabelValues(fmt.Sprintf("%06x", p.LAP)).Inc()
	if p.HeaderDecoded {
		c.headersDecoded.WithLabelValues(p.Header.Type.String()).Inc()
	}
	if p.HECChecked && !p.HECValid {
		c.hecFailures.Inc()
	}
}

// HandleSummary records a completed scan
func (c *Collector) HandleSummary(ctx context.Context, r sniffer.Result) {
	c.scans.Inc()
	c.bitsScanned.Add(float64(r.BitsScanned))
	if !r.Finished.IsZero() {
		c.scanDuration.Observe(r.Finished.Sub(r.Started).Seconds())
	}
}

// SetActivePiconets sets the active piconet gauge
func (c *Collector) SetActivePiconets(n int) {
	c.piconetsActive.Set(float64(n))
}

// Snapshot gathers the registry and sums each BTBB metric across labels
func (c *Collector) Snapshot() (Stats, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, mf := range families {
		total := sumFamily(mf)
		switch mf.GetName() {
		case "btbb_scans_total":
			stats.Scans = uint64(total)
		case "btbb_bits_scanned_total":
			stats.BitsScanned = uint64(total)
		case "btbb_access_codes_total":
			stats.AccessCodes = uint64(total)
		case "btbb_headers_decoded_total":
			stats.HeadersDecoded = uint64(total)
		case "btbb_hec_failures_total":
			stats.HECFailures = uint64(total)
		case "btbb_piconets_active":
			stats.PiconetsActive = int(total)
		}
	}
	return stats, nil
}

func sumFamily(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			total += m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			total += m.GetGauge().GetValue()
		}
	}
	return total
}

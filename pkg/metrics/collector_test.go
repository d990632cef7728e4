package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dbehnke/btbb-nexus/pkg/baseband"
	"github.com/dbehnke/btbb-nexus/pkg/sniffer"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestNewCollector tests creating a new metrics collector
func TestNewCollector(t *testing.T) {
	collector := NewCollector()
	if collector == nil || collector.Registry() == nil {
		t.Fatal("Expected non-nil collector and registry")
	}
}

// TestCollector_PacketMetrics tests per packet counters
func TestCollector_PacketMetrics(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	collector.HandlePacket(ctx, sniffer.Packet{LAP: 0x9e8b33})
	collector.HandlePacket(ctx, sniffer.Packet{
		LAP:           0x9e8b33,
		Header:        baseband.Header{Type: baseband.TypePOLL},
		HeaderDecoded: true,
		HECChecked:    true,
		HECValid:      true,
	})
	collector.HandlePacket(ctx, sniffer.Packet{
		LAP:           0x00abcd,
		Header:        baseband.Header{Type: baseband.TypeDH1},
		HeaderDecoded: true,
		HECChecked:    true,
		HECValid:      false,
	})

	if got := testutil.ToFloat64(collector.accessCodes.WithLabelValues("9e8b33")); got != 2 {
		t.Errorf("access codes for 9e8b33 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.accessCodes.WithLabelValues("00abcd")); got != 1 {
		t.Errorf("access codes for 00abcd = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.headersDecoded.WithLabelValues("POLL")); got != 1 {
		t.Errorf("POLL headers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.hecFailures); got != 1 {
		t.Errorf("HEC failures = %v, want 1", got)
	}
}

// TestCollector_Snapshot tests summed reads across labels
func TestCollector_Snapshot(t *testing.T) {
	collector := NewCollector()
	ctx := context.Background()

	for _, lap := range []uint32{1, 2, 2, 3} {
		collector.HandlePacket(ctx, sniffer.Packet{LAP: lap})
	}
	start := time.Now()
	collector.HandleSummary(ctx, sniffer.Result{BitsScanned: 12345, Started: start, Finished: start.Add(time.Second)})
	collector.SetActivePiconets(3)

	stats, err := collector.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	want := Stats{Scans: 1, BitsScanned: 12345, AccessCodes: 4, PiconetsActive: 3}
	if stats != want {
		t.Errorf("Snapshot = %+v, want %+v", stats, want)
	}

	collector.SetActivePiconets(0)
	stats, _ = collector.Snapshot()
	if stats.PiconetsActive != 0 {
		t.Errorf("PiconetsActive = %d after reset, want 0", stats.PiconetsActive)
	}
}

// TestCollector_ExpositionNames checks the metric names exported
func TestCollector_ExpositionNames(t *testing.T) {
	collector := NewCollector()
	collector.HandlePacket(context.Background(), sniffer.Packet{LAP: 5, HECChecked: true})
	collector.HandleSummary(context.Background(), sniffer.Result{BitsScanned: 10})

	expected := `
# HELP btbb_hec_failures_total Headers whose HEC did not match the UAP
# TYPE btbb_hec_failures_total counter
btbb_hec_failures_total 1
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "btbb_hec_failures_total"); err != nil {
		t.Error(err)
	}

	count, err := testutil.GatherAndCount(collector.Registry(),
		"btbb_bits_scanned_total", "btbb_access_codes_total", "btbb_piconets_active")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 series, got %d", count)
	}
}

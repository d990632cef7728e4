// Package sniffer walks a demodulated bit stream looking for access codes
// and decodes the packet header that follows each one.
package sniffer

import (
	"context"
	"fmt"
	"time"

	"github.com/dbehnke/btbb-nexus/pkg/baseband"
	"github.com/dbehnke/btbb-nexus/pkg/logger"
	"github.com/google/uuid"
)

// SlotBits is the length of one 625us slot at 1 Msym/s
const SlotBits = 625

// Config holds what is already known about the piconet being scanned
type Config struct {
	LAP        *uint32 // nil sniffs any LAP
	UAP        uint8
	UAPKnown   bool
	Clock      uint32 // CLK6-1 at the first packet of each LAP
	ClockKnown bool
	MaxPackets int // 0 means unlimited
}

// Packet is one access code hit, with its header when it could be decoded
type Packet struct {
	ID            uuid.UUID           `json:"id"`
	ScanID        uuid.UUID           `json:"scan_id"`
	Offset        int                 `json:"offset"`
	LAP           uint32              `json:"lap"`
	AccessCode    baseband.AccessCode `json:"-"`
	Header        baseband.Header     `json:"header"`
	HeaderDecoded bool                `json:"header_decoded"`
	HECChecked    bool                `json:"hec_checked"`
	HECValid      bool                `json:"hec_valid"`
	Clock         uint32              `json:"clock"`
	ClockKnown    bool                `json:"clock_known"`
}

// Result summarises a scan
type Result struct {
	ScanID         uuid.UUID      `json:"scan_id"`
	BitsScanned    int            `json:"bits_scanned"`
	Packets        []Packet       `json:"-"`
	HeadersDecoded int            `json:"headers_decoded"`
	HECFailures    int            `json:"hec_failures"`
	LAPs           map[uint32]int `json:"laps"`
	Truncated      bool           `json:"truncated"`
	Started        time.Time      `json:"started"`
	Finished       time.Time      `json:"finished"`
}

// PacketCount returns the number of access codes found
func (r Result) PacketCount() int {
	return len(r.Packets)
}

// Sink receives every packet found, in stream order
type Sink interface {
	HandlePacket(ctx context.Context, p Packet)
}

// SummarySink is implemented by sinks that also want the scan summary
type SummarySink interface {
	HandleSummary(ctx context.Context, r Result)
}

// Sniffer scans bit streams and fans packets out to its sinks
type Sniffer struct {
	config Config
	sinks  []Sink
	log    *logger.Logger
}

type clockAnchor struct {
	offset int
	clock  uint32
}

// New creates a sniffer
func New(config Config, log *logger.Logger) *Sniffer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &Sniffer{
		config: config,
		log:    log.WithComponent("sniffer"),
	}
}

// AddSink registers a packet sink
func (s *Sniffer) AddSink(sink Sink) {
	if sink != nil {
		s.sinks = append(s.sinks, sink)
	}
}

// Scan walks bits once from the start. After each access code the scan
// resumes at the bit following it.
func (s *Sniffer) Scan(ctx context.Context, bits []byte) (Result, error) {
	result := Result{
		ScanID:      uuid.New(),
		BitsScanned: len(bits),
		LAPs:        make(map[uint32]int),
		Started:     time.Now(),
	}
	log := s.log.With(logger.String("scan", result.ScanID.String()))

	if s.config.LAP != nil {
		log.Info("Scanning for access code",
			logger.Hex("lap", uint64(*s.config.LAP&baseband.LAPMask), 6),
			logger.Int("bits", len(bits)))
	} else {
		log.Info("Sniffing for any access code", logger.Int("bits", len(bits)))
	}

	anchors := make(map[uint32]clockAnchor)
	offset := 0
	for offset+baseband.AccessCodeBits <= len(bits) {
		if err := ctx.Err(); err != nil {
			result.Finished = time.Now()
			return result, fmt.Errorf("scan interrupted at bit %d: %w", offset, err)
		}
		if s.config.MaxPackets > 0 && len(result.Packets) >= s.config.MaxPackets {
			result.Truncated = true
			break
		}

		found, lap, ok := s.next(bits[offset:])
		if !ok {
			break
		}
		start := offset + found

		p := s.decode(bits, start, lap, anchors)
		p.ScanID = result.ScanID
		result.Packets = append(result.Packets, p)
		result.LAPs[lap]++
		if p.HeaderDecoded {
			result.HeadersDecoded++
		}
		if p.HECChecked && !p.HECValid {
			result.HECFailures++
		}

		if log.Enabled(logger.DebugLevel) {
			fields := []logger.Field{
				logger.Int("offset", p.Offset),
				logger.Hex("lap", uint64(p.LAP), 6),
			}
			if p.HeaderDecoded {
				fields = append(fields, logger.String("header", p.Header.String()))
			}
			log.Debug("Access code", fields...)
		}

		for _, sink := range s.sinks {
			sink.HandlePacket(ctx, p)
		}

		offset = start + baseband.AccessCodeBits
	}

	result.Finished = time.Now()
	for _, sink := range s.sinks {
		if ss, ok := sink.(SummarySink); ok {
			ss.HandleSummary(ctx, result)
		}
	}

	log.Info("Scan complete",
		logger.Int("packets", len(result.Packets)),
		logger.Int("headers", result.HeadersDecoded),
		logger.Int("hec_failures", result.HECFailures),
		logger.Int("piconets", len(result.LAPs)),
		logger.Bool("truncated", result.Truncated),
		logger.Duration("elapsed", result.Finished.Sub(result.Started)))

	return result, nil
}

// next locates the next access code in stream
func (s *Sniffer) next(stream []byte) (int, uint32, bool) {
	if s.config.LAP != nil {
		lap := *s.config.LAP & baseband.LAPMask
		idx := baseband.FindAccessCode(stream, lap)
		return idx, lap, idx >= 0
	}
	return baseband.SniffAccessCode(stream)
}

func (s *Sniffer) decode(bits []byte, start int, lap uint32, anchors map[uint32]clockAnchor) Packet {
	p := Packet{
		ID:         uuid.New(),
		Offset:     start,
		LAP:        lap,
		AccessCode: baseband.GenerateAccessCode(lap),
	}

	headerStart := start + baseband.AccessCodeBits
	if headerStart+baseband.HeaderBits > len(bits) {
		return p
	}
	raw := bits[headerStart : headerStart+baseband.HeaderBits]

	clock, clockKnown := s.clockAt(start, lap, anchors)
	if clockKnown {
		h, err := baseband.DecodeHeader(raw, clock)
		if err != nil {
			return p
		}
		p.Header = h
		p.HeaderDecoded = true
		p.Clock = clock
		p.ClockKnown = true
		if !s.config.UAPKnown {
			return p
		}
		p.HECChecked = true
		p.HECValid = h.CheckHEC(s.config.UAP)
		// an estimated clock may have drifted; search again
		if p.HECValid || s.config.ClockKnown {
			return p
		}
	}

	if s.config.UAPKnown {
		p.HECChecked = true
		h, clk, ok := baseband.RecoverClock(raw, s.config.UAP)
		if !ok {
			return p
		}
		p.Header = h
		p.HeaderDecoded = true
		p.HECValid = true
		p.Clock = clk
		p.ClockKnown = true
		anchors[lap] = clockAnchor{offset: start, clock: clk}
	}

	return p
}

// clockAt estimates CLK6-1 at offset from the last anchor for lap.
// CLK1 toggles once per slot, so the estimate advances one step per
// SlotBits of stream.
func (s *Sniffer) clockAt(offset int, lap uint32, anchors map[uint32]clockAnchor) (uint32, bool) {
	anchor, ok := anchors[lap]
	if !ok {
		if !s.config.ClockKnown {
			return 0, false
		}
		anchor = clockAnchor{offset: offset, clock: s.config.Clock & 0x3f}
		anchors[lap] = anchor
	}
	slots := (offset - anchor.offset + SlotBits/2) / SlotBits
	return (anchor.clock + uint32(slots)) & 0x3f, true
}

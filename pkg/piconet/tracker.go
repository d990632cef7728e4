// Package piconet groups sniffed packets into per-LAP sessions and stores
// them when they end.
package piconet

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dbehnke/btbb-nexus/pkg/baseband"
	"github.com/dbehnke/btbb-nexus/pkg/database"
	"github.com/dbehnke/btbb-nexus/pkg/logger"
	"github.com/dbehnke/btbb-nexus/pkg/sniffer"
)

const packetBatchSize = 500

// ActiveGauge is told how many piconets are being tracked
type ActiveGauge interface {
	SetActivePiconets(n int)
}

// Config holds tracker configuration
type Config struct {
	UAP      uint8
	UAPKnown bool
	// MaxGapBits ends a session once another packet arrives this many bits
	// after its last one. Zero keeps sessions open until Flush.
	MaxGapBits int
}

// Session is the running state of one piconet
type Session struct {
	ScanID         string                      `json:"scan_id"`
	LAP            uint32                      `json:"lap"`
	UAP            uint8                       `json:"uap"`
	UAPKnown       bool                        `json:"uap_known"`
	FirstOffset    int                         `json:"first_offset"`
	LastOffset     int                         `json:"last_offset"`
	PacketCount    int                         `json:"packet_count"`
	HeadersDecoded int                         `json:"headers_decoded"`
	HECValid       int                         `json:"hec_valid"`
	HECFailed      int                         `json:"hec_failed"`
	Types          map[baseband.PacketType]int `json:"-"`
	FirstSeen      time.Time                   `json:"first_seen"`
	LastSeen       time.Time                   `json:"last_seen"`
}

// TypeNames returns the packet types seen, ordered by type code
func (s *Session) TypeNames() []string {
	codes := make([]int, 0, len(s.Types))
	for t := range s.Types {
		codes = append(codes, int(t))
	}
	sort.Ints(codes)

	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = baseband.PacketType(c).String()
	}
	return names
}

func (s *Session) record() *database.Piconet {
	return &database.Piconet{
		ScanID:         s.ScanID,
		LAP:            s.LAP,
		UAP:            s.UAP,
		UAPKnown:       s.UAPKnown,
		FirstOffset:    int64(s.FirstOffset),
		LastOffset:     int64(s.LastOffset),
		PacketCount:    s.PacketCount,
		HeadersDecoded: s.HeadersDecoded,
		HECValid:       s.HECValid,
		HECFailed:      s.HECFailed,
		PacketTypes:    strings.Join(s.TypeNames(), ","),
		FirstSeen:      s.FirstSeen,
		LastSeen:       s.LastSeen,
	}
}

// Tracker implements sniffer.Sink. The repositories are optional; without
// them completed sessions are only kept in memory.
type Tracker struct {
	config    Config
	piconets  *database.PiconetRepository
	packets   *database.PacketRepository
	gauge     ActiveGauge
	logger    *logger.Logger
	active    map[uint32]*Session
	completed []Session
	pending   []database.PacketRecord
	mu        sync.RWMutex
}

// NewTracker creates a new piconet tracker
func NewTracker(config Config, piconets *database.PiconetRepository, packets *database.PacketRepository, log *logger.Logger) *Tracker {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &Tracker{
		config:   config,
		piconets: piconets,
		packets:  packets,
		logger:   log.WithComponent("piconet"),
		active:   make(map[uint32]*Session),
	}
}

// SetGauge registers a gauge for the active session count
func (t *Tracker) SetGauge(g ActiveGauge) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gauge = g
}

// HandlePacket adds a packet to its piconet session
func (t *Tracker) HandlePacket(ctx context.Context, p sniffer.Packet) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()

	if t.config.MaxGapBits > 0 {
		t.endStale(p.Offset, t.config.MaxGapBits)
	}

	// Get or create session
	session, exists := t.active[p.LAP]
	if !exists {
		session = &Session{
			ScanID:      p.ScanID.String(),
			LAP:         p.LAP,
			UAP:         t.config.UAP,
			UAPKnown:    t.config.UAPKnown,
			FirstOffset: p.Offset,
			Types:       make(map[baseband.PacketType]int),
			FirstSeen:   now,
		}
		t.active[p.LAP] = session
		t.logger.Debug("Started tracking piconet",
			logger.Hex("lap", uint64(p.LAP), 6),
			logger.Int("offset", p.Offset))
	}

	session.LastOffset = p.Offset
	session.LastSeen = now
	session.PacketCount++
	if p.HeaderDecoded {
		session.HeadersDecoded++
		session.Types[p.Header.Type]++
	}
	if p.HECChecked {
		if p.HECValid {
			session.HECValid++
		} else {
			session.HECFailed++
		}
	}

	if t.packets != nil {
		t.pending = append(t.pending, packetRecord(p))
		if len(t.pending) >= packetBatchSize {
			t.flushPackets()
		}
	}

	t.updateGauge()
}

// HandleSummary ends every open session once a scan completes
func (t *Tracker) HandleSummary(ctx context.Context, r sniffer.Result) {
	t.Flush()
}

// Flush ends and stores every active session
func (t *Tracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for lap, session := range t.active {
		t.end(lap, session)
	}
	t.flushPackets()
	t.updateGauge()
}

// CleanupStale ends sessions whose last packet is more than maxGapBits
// before offset
func (t *Tracker) CleanupStale(offset, maxGapBits int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	ended := t.endStale(offset, maxGapBits)
	t.updateGauge()
	return ended
}

func (t *Tracker) endStale(offset, maxGapBits int) int {
	ended := 0
	for lap, session := range t.active {
		gap := offset - session.LastOffset
		if gap > maxGapBits {
			t.logger.Debug("Piconet went quiet",
				logger.Hex("lap", uint64(lap), 6),
				logger.Int("gap_bits", gap))
			t.end(lap, session)
			ended++
		}
	}
	return ended
}

// end stores a session and removes it from active tracking
func (t *Tracker) end(lap uint32, session *Session) {
	delete(t.active, lap)
	t.completed = append(t.completed, *session)

	if t.piconets == nil {
		return
	}
	if err := t.piconets.Create(session.record()); err != nil {
		t.logger.Error("Failed to save piconet",
			logger.Error(err),
			logger.Hex("lap", uint64(lap), 6))
		return
	}
	t.logger.Debug("Saved piconet",
		logger.Hex("lap", uint64(lap), 6),
		logger.Int("packets", session.PacketCount),
		logger.Int("hec_failed", session.HECFailed))
}

func (t *Tracker) flushPackets() {
	if t.packets == nil || len(t.pending) == 0 {
		return
	}
	if err := t.packets.CreateBatch(t.pending, 100); err != nil {
		t.logger.Error("Failed to save packets",
			logger.Error(err),
			logger.Int("count", len(t.pending)))
	}
	t.pending = t.pending[:0]
}

func (t *Tracker) updateGauge() {
	if t.gauge != nil {
		t.gauge.SetActivePiconets(len(t.active))
	}
}

// GetActiveCount returns the number of piconets currently tracked
func (t *Tracker) GetActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}

// Active returns copies of the open sessions ordered by first offset
func (t *Tracker) Active() []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sessions := make([]Session, 0, len(t.active))
	for _, s := range t.active {
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].FirstOffset < sessions[j].FirstOffset
	})
	return sessions
}

// Completed returns the sessions ended so far, in the order they ended
func (t *Tracker) Completed() []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Session, len(t.completed))
	copy(out, t.completed)
	return out
}

func packetRecord(p sniffer.Packet) database.PacketRecord {
	rec := database.PacketRecord{
		PacketID:      p.ID.String(),
		ScanID:        p.ScanID.String(),
		Offset:        int64(p.Offset),
		LAP:           p.LAP,
		HeaderDecoded: p.HeaderDecoded,
		HECChecked:    p.HECChecked,
		HECValid:      p.HECValid,
		Clock:         uint8(p.Clock),
		ClockKnown:    p.ClockKnown,
	}
	if p.HeaderDecoded {
		rec.Type = p.Header.Type.String()
		rec.LTAddr = p.Header.LTAddr
		rec.Flow = p.Header.Flow
		rec.ARQN = p.Header.ARQN
		rec.SEQN = p.Header.SEQN
		rec.HEC = p.Header.HEC
	}
	return rec
}

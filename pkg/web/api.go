package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dbehnke/btbb-nexus/pkg/config"
	"github.com/dbehnke/btbb-nexus/pkg/database"
	"github.com/dbehnke/btbb-nexus/pkg/logger"
	"github.com/dbehnke/btbb-nexus/pkg/metrics"
	"github.com/dbehnke/btbb-nexus/pkg/piconet"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// PiconetSource exposes in-memory piconet sessions
type PiconetSource interface {
	Active() []piconet.Session
	Completed() []piconet.Session
}

// StatsSource exposes collector counters
type StatsSource interface {
	Snapshot() (metrics.Stats, error)
}

// Dependencies are the optional data sources behind the API. Nil members
// make the matching endpoints fall back or return empty lists.
type Dependencies struct {
	Piconets *database.PiconetRepository
	Packets  *database.PacketRepository
	Vendors  *database.VendorRepository
	Tracker  PiconetSource
	Stats    StatsSource
}

// API handles REST API endpoints
type API struct {
	deps   Dependencies
	hub    *WebSocketHub
	logger *logger.Logger
}

// NewAPI creates a new API instance
func NewAPI(deps Dependencies, hub *WebSocketHub, log *logger.Logger) *API {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &API{
		deps:   deps,
		hub:    hub,
		logger: log,
	}
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version, commit, buildTime := GetVersionInfo()
	response := map[string]interface{}{
		"status":     "running",
		"service":    "btbb-nexus",
		"version":    version,
		"commit":     commit,
		"build_time": buildTime,
	}

	if a.hub != nil {
		response["websocket_clients"] = a.hub.GetClientCount()
		if scan, ok := a.hub.LastScan(); ok {
			response["last_scan"] = map[string]interface{}{
				"scan_id":         scan.ScanID.String(),
				"bits_scanned":    scan.BitsScanned,
				"packets":         scan.PacketCount(),
				"headers_decoded": scan.HeadersDecoded,
				"hec_failures":    scan.HECFailures,
				"piconets":        len(scan.LAPs),
				"truncated":       scan.Truncated,
				"started":         scan.Started,
				"finished":        scan.Finished,
			}
		}
	}
	if a.deps.Stats != nil {
		stats, err := a.deps.Stats.Snapshot()
		if err != nil {
			a.logger.Warn("Failed to gather metrics", logger.Error(err))
		} else {
			response["stats"] = stats
		}
	}
	if a.deps.Tracker != nil {
		response["active_piconets"] = len(a.deps.Tracker.Active())
	}

	a.writeJSON(w, response)
}

// HandlePiconets handles the /api/piconets endpoint. Stored piconets are
// returned when a database is configured, in-memory sessions otherwise.
func (a *API) HandlePiconets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lap, hasLAP, err := lapParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := limitParam(r)

	if a.deps.Piconets != nil {
		var piconets []database.Piconet
		if hasLAP {
			piconets, err = a.deps.Piconets.GetByLAP(lap, limit)
		} else {
			piconets, err = a.deps.Piconets.GetRecent(limit)
		}
		if err != nil {
			a.logger.Error("Failed to query piconets", logger.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		a.writeJSON(w, piconets)
		return
	}

	sessions := []piconet.Session{}
	if a.deps.Tracker != nil {
		all := append(a.deps.Tracker.Active(), a.deps.Tracker.Completed()...)
		for _, s := range all {
			if hasLAP && s.LAP != lap {
				continue
			}
			sessions = append(sessions, s)
			if len(sessions) == limit {
				break
			}
		}
	}
	a.writeJSON(w, sessions)
}

// HandlePackets handles the /api/packets endpoint
func (a *API) HandlePackets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lap, hasLAP, err := lapParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	packets := []database.PacketRecord{}
	if a.deps.Packets != nil {
		limit := limitParam(r)
		if hasLAP {
			packets, err = a.deps.Packets.GetByLAP(lap, limit)
		} else {
			packets, err = a.deps.Packets.GetRecent(limit)
		}
		if err != nil {
			a.logger.Error("Failed to query packets", logger.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}
	a.writeJSON(w, packets)
}

// HandleVendors handles the /api/vendors endpoint. uap is a required hex
// byte; every OUI ending in it is a candidate manufacturer.
func (a *API) HandleVendors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s := strings.TrimPrefix(strings.ToLower(r.URL.Query().Get("uap")), "0x")
	uap, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		http.Error(w, "bad uap parameter", http.StatusBadRequest)
		return
	}

	vendors := []database.Vendor{}
	if a.deps.Vendors != nil {
		vendors, err = a.deps.Vendors.GetByUAP(uint8(uap), limitParam(r))
		if err != nil {
			a.logger.Error("Failed to query vendors", logger.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}
	a.writeJSON(w, vendors)
}

func (a *API) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}

func lapParam(r *http.Request) (uint32, bool, error) {
	s := r.URL.Query().Get("lap")
	if s == "" {
		return 0, false, nil
	}
	lap, err := config.ParseLAP(s)
	if err != nil {
		return 0, false, fmt.Errorf("bad lap parameter: %w", err)
	}
	return lap, true, nil
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

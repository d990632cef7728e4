package web

import "sync"

// VersionInfo describes the running build
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

var (
	verMu   sync.RWMutex
	verInfo = VersionInfo{Version: "dev", Commit: "unknown", BuildTime: "unknown"}
)

// SetVersionInfo sets the version information to be exposed by the web API
func SetVersionInfo(versionStr, commit, buildTime string) {
	verMu.Lock()
	defer verMu.Unlock()
	verInfo = VersionInfo{Version: versionStr, Commit: commit, BuildTime: buildTime}
}

// GetVersionInfo returns the currently set version info
func GetVersionInfo() (string, string, string) {
	verMu.RLock()
	defer verMu.RUnlock()
	return verInfo.Version, verInfo.Commit, verInfo.BuildTime
}

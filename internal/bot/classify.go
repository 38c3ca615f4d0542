package bot

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/minelurk/minelurk/internal/game"
)

// DisconnectKind buckets a terminated connection into the reaction the
// supervisor should take.
type DisconnectKind string

const (
	KindBan       DisconnectKind = "ban"
	KindDuplicate DisconnectKind = "duplicate_login"
	KindThrottle  DisconnectKind = "throttled"
	KindNetwork   DisconnectKind = "network"
	KindProtocol  DisconnectKind = "protocol"
	KindUnknown   DisconnectKind = "unknown"
)

var (
	banMarkers = []string{
		"banned",
		"ban ",
		"blacklist",
	}
	duplicateMarkers = []string{
		"duplicate_login",
		"logged in from another location",
		"already logged in",
		"already online",
	}
	throttleMarkers = []string{
		"throttled",
		"connection throttled",
		"wait before reconnecting",
		"too quickly",
		"too fast",
	}
	// Protocol noise: decode and packet-level complaints that terminate a
	// session without saying anything about our standing on the server.
	protocolMarkers = []string{
		"invalid packet",
		"bad packet",
		"unknown packet",
		"decode",
		"deserialize",
		"chunk",
	}
)

// Classify maps a terminal connection error onto a DisconnectKind. Server
// kicks are matched on their reason text; everything else is inspected for
// transport-level failure.
func Classify(err error) DisconnectKind {
	if err == nil {
		return KindUnknown
	}

	var kick *game.DisconnectError
	if errors.As(err, &kick) {
		reason := strings.ToLower(kick.Reason)
		switch {
		case matchesAny(reason, banMarkers):
			return KindBan
		case matchesAny(reason, duplicateMarkers):
			return KindDuplicate
		case matchesAny(reason, throttleMarkers):
			return KindThrottle
		case matchesAny(reason, protocolMarkers):
			return KindProtocol
		default:
			return KindUnknown
		}
	}

	if isNetworkError(err) {
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	if matchesAny(msg, protocolMarkers) {
		return KindProtocol
	}

	return KindUnknown
}

func matchesAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return matchesAny(msg, []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no route to host",
		"network is unreachable",
		"i/o timeout",
		"use of closed network connection",
	})
}

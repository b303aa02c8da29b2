//go:build !linux

package caps

import "log/slog"

func Probe(log *slog.Logger) Capabilities {
	log.With("src", "Caps").Warn("no capability probe for this platform")
	return Capabilities{}
}

package netutil

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
)

// SelectBindAddr returns preferred when it can be listened on. Otherwise, with
// autoFallback set, it returns the first free address from candidates.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		ok, err := IsAddrAvailable(preferred)
		if err != nil {
			return "", err
		}
		if ok {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("bind address in use: %s", preferred)
		}
		slog.Warn("bind address in use, trying fallbacks", "preferred", preferred, "candidates", candidates)
	}

	for _, addr := range candidates {
		ok, err := IsAddrAvailable(addr)
		if err != nil {
			return "", err
		}
		if ok {
			return addr, nil
		}
	}

	return "", fmt.Errorf("no available bind address among %s", strings.Join(append([]string{preferred}, candidates...), ", "))
}

// IsAddrAvailable reports whether addr can be listened on.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}

// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package api

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// LoadScope limits what a load request may read by path or URL.
type LoadScope struct {
	// Dir is the directory path loads are confined to. Relative paths are
	// resolved against it. Empty disables path loads.
	Dir string

	// Hosts lists the hostnames URL loads may fetch from. "*" allows any
	// host. Empty disables URL loads.
	Hosts []string
}

var (
	errPathLoadsDisabled = errors.New("path loads are disabled, set server.load_dir")
	errURLLoadsDisabled  = errors.New("url loads are disabled, set server.load_allowed_hosts")
	errLoadFileMissing   = errors.New("file not found in the load directory")
)

// resolvePath returns the file to load for p, which must name a file inside
// Dir after symlinks are followed.
func (s LoadScope) resolvePath(p string) (string, error) {
	if s.Dir == "" {
		return "", errPathLoadsDisabled
	}
	dir, err := filepath.Abs(s.Dir)
	if err != nil {
		return "", fmt.Errorf("load directory: %w", err)
	}

	full := filepath.Clean(p)
	if !filepath.IsAbs(full) {
		full = filepath.Join(dir, full)
	}
	if !within(dir, full) {
		return "", fmt.Errorf("path %q is outside the load directory", p)
	}

	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("load directory unavailable: %w", err)
	}
	realFull, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errLoadFileMissing, p)
	}
	if !within(realDir, realFull) {
		return "", fmt.Errorf("path %q is outside the load directory", p)
	}
	return full, nil
}

// within reports whether target is dir or below it.
func within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return filepath.IsLocal(rel)
}

// checkURL accepts http and https URLs on an allowed host.
func (s LoadScope) checkURL(raw string) error {
	if len(s.Hosts) == 0 {
		return errURLLoadsDisabled
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme %q is not allowed", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range s.Hosts {
		if allowed == "*" || strings.EqualFold(allowed, host) {
			return nil
		}
	}
	return fmt.Errorf("host %q is not in the load allowlist", host)
}

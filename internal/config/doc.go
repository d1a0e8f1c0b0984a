// Package config provides configuration structures and utilities for sricheck.
// It defines the scan options built from CLI flags, their validation, and the
// optional .sricheck YAML file with per-site headers, cookies and filters.
package config

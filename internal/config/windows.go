/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/vakt/internal/segment"
)

type windowsFile struct {
	Windows []windowEntry `yaml:"windows"`
}

type windowEntry struct {
	Name        string  `yaml:"name"`
	Start       string  `yaml:"start"`
	End         string  `yaml:"end"`
	Coefficient float64 `yaml:"coefficient"`
}

// LoadWindows reads premium windows from a YAML file. An empty path
// returns the built-in defaults.
func LoadWindows(path string) ([]segment.Window, error) {
	if path == "" {
		return segment.DefaultWindows(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read windows file: %w", err)
	}
	return ParseWindows(data)
}

// ParseWindows decodes YAML window definitions. Start and end are local
// wall-clock times in HH:MM; end at or before start means the window
// wraps past midnight.
func ParseWindows(data []byte) ([]segment.Window, error) {
	var file windowsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse windows file: %w", err)
	}
	if len(file.Windows) == 0 {
		return nil, fmt.Errorf("windows file defines no windows")
	}

	windows := make([]segment.Window, 0, len(file.Windows))
	for i, entry := range file.Windows {
		if entry.Name == "" {
			return nil, fmt.Errorf("window %d: name is required", i)
		}
		if entry.Coefficient <= 0 {
			return nil, fmt.Errorf("window %q: coefficient must be positive, got %v", entry.Name, entry.Coefficient)
		}
		sh, sm, err := parseClock(entry.Start)
		if err != nil {
			return nil, fmt.Errorf("window %q start: %w", entry.Name, err)
		}
		eh, em, err := parseClock(entry.End)
		if err != nil {
			return nil, fmt.Errorf("window %q end: %w", entry.Name, err)
		}
		windows = append(windows, segment.Window{
			Name:        entry.Name,
			StartHour:   sh,
			StartMinute: sm,
			EndHour:     eh,
			EndMinute:   em,
			Coefficient: entry.Coefficient,
		})
	}
	return windows, nil
}

func parseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

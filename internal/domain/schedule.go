package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseSchedule accepts either a plain cron expression or a JSON array of
// {"cron": "...", "platforms": [...]} entries.
func ParseSchedule(spec string) ([]ScheduleEntry, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	if !strings.HasPrefix(spec, "[") {
		return []ScheduleEntry{{Cron: spec}}, nil
	}

	var entries []ScheduleEntry
	if err := json.Unmarshal([]byte(spec), &entries); err != nil {
		return nil, fmt.Errorf("parse schedule json: %w", err)
	}
	out := entries[:0]
	for _, e := range entries {
		e.Cron = strings.TrimSpace(e.Cron)
		if e.Cron == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

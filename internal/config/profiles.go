package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"service-sla-guard/internal/domain"
	"service-sla-guard/internal/sla"
)

type profilesFile struct {
	Classes map[string]domain.SLAProfile `yaml:"service_classes"`
}

// LoadProfiles reads SLA profiles from a YAML file. An empty path returns
// the built-in profiles.
//
//	service_classes:
//	  EXPRESS:
//	    deadline_minutes: 60
//	    penalty_per_minute: 5
//	    warning_ratio: 0.75
//	    critical_ratio: 0.9
func LoadProfiles(path string) (map[domain.ServiceClass]domain.SLAProfile, error) {
	if strings.TrimSpace(path) == "" {
		return sla.DefaultProfiles(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sla profiles: %w", err)
	}
	return ParseProfiles(b)
}

// ParseProfiles decodes and validates SLA profiles. Unset ratios default
// to 0.75 and 0.90.
func ParseProfiles(b []byte) (map[domain.ServiceClass]domain.SLAProfile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var f profilesFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode sla profiles: %w", err)
	}
	if len(f.Classes) == 0 {
		return nil, errors.New("sla profiles: no service classes")
	}

	out := make(map[domain.ServiceClass]domain.SLAProfile, len(f.Classes))
	for name, p := range f.Classes {
		class := domain.ServiceClass(strings.ToUpper(strings.TrimSpace(name)))
		if class == "" {
			return nil, errors.New("sla profiles: empty service class name")
		}
		if _, dup := out[class]; dup {
			return nil, fmt.Errorf("sla profiles: duplicate service class %s", class)
		}
		p = p.WithDefaults()
		if !p.Valid() {
			return nil, fmt.Errorf("sla profiles: invalid profile for %s: deadline %.2f, ratios %.2f/%.2f",
				class, p.DeadlineMinutes, p.WarningRatio, p.CriticalRatio)
		}
		out[class] = p
	}
	return out, nil
}

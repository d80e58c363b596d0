package detectors

import (
	"fmt"

	"github.com/xyleth/desloppify-sub004/internal/config"
)

// FromProject builds a registry with the built-in structural detector (when
// enabled) and every configured command detector.
func FromProject(p *config.Project, statePath string) (*Registry, error) {
	r, err := NewRegistry(statePath)
	if err != nil {
		return nil, err
	}

	if p.Structural.Enabled {
		sd := NewStructuralDetector()
		sd.OutlierThreshold = p.Structural.OutlierThreshold
		if len(p.Structural.Extensions) > 0 {
			sd.FileExtensions = append([]string(nil), p.Structural.Extensions...)
		}
		if len(p.Structural.ExcludePatterns) > 0 {
			sd.ExcludePatterns = append([]string(nil), p.Structural.ExcludePatterns...)
		}
		sd.Zone = p.ZoneFor
		if err := r.Register(sd); err != nil {
			return nil, err
		}
	}

	for _, dc := range p.Detectors {
		d, err := NewExecDetector(dc)
		if err != nil {
			return nil, err
		}
		if err := r.Register(d); err != nil {
			return nil, fmt.Errorf("registering %s: %w", dc.Name, err)
		}
	}
	return r, nil
}

package hunt

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed logos.yaml
var manifestYAML []byte

// Placement describes where one golden logo trigger lives in the site.
// The machine treats the id as opaque; page and asset exist for the
// trigger surfaces.
type Placement struct {
	ID    string `yaml:"id"`
	Page  string `yaml:"page"`
	Asset string `yaml:"asset"`
	Hint  string `yaml:"hint"`
}

type manifest struct {
	Logos []Placement `yaml:"logos"`
}

var loadManifest = sync.OnceValues(func() ([]Placement, error) {
	var m manifest
	if err := yaml.Unmarshal(manifestYAML, &m); err != nil {
		return nil, fmt.Errorf("parse logo manifest: %w", err)
	}
	if len(m.Logos) == 0 {
		return nil, fmt.Errorf("logo manifest is empty")
	}
	return m.Logos, nil
})

// Placements returns the embedded trigger manifest.
func Placements() ([]Placement, error) {
	return loadManifest()
}

// ShouldRender decides whether the hidden trigger for logoID appears on
// pagePath. Already-found triggers render as the normal asset instead,
// so the answer is false once the machine has the id in its found set.
func (m *Machine) ShouldRender(logoID, pagePath string) bool {
	placements, err := loadManifest()
	if err != nil {
		return false
	}
	for _, p := range placements {
		if p.ID == logoID {
			return p.Page == pagePath && !m.AlreadyFound(logoID)
		}
	}
	return false
}

package sink

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Manifest describes one emitted feature table.
type Manifest struct {
	RunID     string    `yaml:"run_id"`
	Mode      string    `yaml:"mode"`
	RaceID    int       `yaml:"race_id,omitempty"`
	Output    string    `yaml:"output"`
	Rows      int       `yaml:"rows"`
	Races     int       `yaml:"races"`
	Columns   []string  `yaml:"columns"`
	SHA256    string    `yaml:"sha256"`
	CreatedAt time.Time `yaml:"created_at"`
}

// NewManifest fingerprints data, the exact bytes written to output.
func NewManifest(mode, output string, columns []string, rows, races int, data []byte) Manifest {
	sum := sha256.Sum256(data)
	return Manifest{
		RunID:     uuid.NewString(),
		Mode:      mode,
		Output:    output,
		Rows:      rows,
		Races:     races,
		Columns:   columns,
		SHA256:    hex.EncodeToString(sum[:]),
		CreatedAt: time.Now().UTC(),
	}
}

// Encode renders the manifest as YAML.
func (m Manifest) Encode() ([]byte, error) {
	out, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return out, nil
}

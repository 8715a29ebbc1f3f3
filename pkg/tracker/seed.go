package tracker

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the initial content written on first run.
type Seed struct {
	Subjects []SeedSubject `yaml:"subjects"`
}

// SeedSubject is a subject with its labs.
type SeedSubject struct {
	Subject `yaml:",inline"`
	Labs    []Lab `yaml:"labs"`
}

// DefaultSeed returns the bundled seed.
func DefaultSeed() Seed {
	seed, err := ParseSeed(defaultSeed)
	if err != nil {
		panic(fmt.Sprintf("bundled seed is invalid: %v", err))
	}
	return seed
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	for i, s := range seed.Subjects {
		if s.ID == "" {
			return Seed{}, fmt.Errorf("parse seed: subject #%d has no id", i+1)
		}
		for j := range s.Labs {
			if s.Labs[j].ID == "" {
				return Seed{}, fmt.Errorf("parse seed: lab #%d of subject %s has no id", j+1, s.ID)
			}
			if s.Labs[j].Status == "" {
				s.Labs[j].Status = StatusNotStarted
			}
		}
	}
	return seed, nil
}

// ReadSeed decodes a YAML seed from r.
func ReadSeed(r io.Reader) (Seed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

// LoadSeedFile decodes the YAML seed at path.
func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("open seed: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadSeed(f)
}

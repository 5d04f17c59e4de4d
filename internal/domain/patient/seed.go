package patient

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Patients []Patient `yaml:"patients"`
}

// LoadSeedFile reads patients from a YAML document with a top-level
// "patients" list.
func LoadSeedFile(path string) ([]Patient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patient seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes the YAML patient list used by the seed command.
func ParseSeed(data []byte) ([]Patient, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse patient seed: %w", err)
	}
	for i := range f.Patients {
		f.Patients[i].Normalize()
		if err := f.Patients[i].Validate(); err != nil {
			return nil, fmt.Errorf("patient %d: %w", i, err)
		}
	}
	return f.Patients, nil
}

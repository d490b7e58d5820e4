package secrets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type profilesFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadFile reads a YAML profile file. ${VAR} and $VAR references are expanded
// from the environment before parsing so connection strings can stay out of
// the file.
//
//	profiles:
//	  billing:
//	    connectionString: ${BILLING_BROKERS}
//	    topic: billing
//	    subscription: relay
func LoadFile(path string) (*StaticStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	return Parse(raw)
}

// Parse is LoadFile without the file.
func Parse(raw []byte) (*StaticStore, error) {
	var f profilesFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	for name, p := range f.Profiles {
		if p.Topic == "" {
			return nil, fmt.Errorf("profile %q: topic is required", name)
		}
	}
	return NewStaticStore(f.Profiles), nil
}

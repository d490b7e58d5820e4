// Package secrets resolves logical party names to broker connection details.
//
// The messaging core never reads configuration files itself; it only calls
// ResolveProfile. Stores are safe for concurrent use.
package secrets

import (
	"errors"
	"fmt"
)

// ErrProfileNotFound is matched by errors.Is on every lookup miss.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is the connection detail behind a logical name.
type Profile struct {
	Name             string `yaml:"-"`
	ConnectionString string `yaml:"connectionString"`
	Topic            string `yaml:"topic"`
	Subscription     string `yaml:"subscription"`
}

// ProfileStore is a synchronous lookup by logical name.
type ProfileStore interface {
	ResolveProfile(name string) (Profile, error)
}

// NotFoundError names the profile that could not be resolved.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("profile %q not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrProfileNotFound
}

// StaticStore is an in-memory ProfileStore. It is immutable after construction.
type StaticStore struct {
	profiles map[string]Profile
}

func NewStaticStore(profiles map[string]Profile) *StaticStore {
	copied := make(map[string]Profile, len(profiles))
	for name, p := range profiles {
		p.Name = name
		copied[name] = p
	}
	return &StaticStore{profiles: copied}
}

func (s *StaticStore) ResolveProfile(name string) (Profile, error) {
	p, ok := s.profiles[name]
	if !ok {
		return Profile{}, &NotFoundError{Name: name}
	}
	return p, nil
}

// Names lists the configured profile names, unordered.
func (s *StaticStore) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	return names
}

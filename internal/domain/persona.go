// Package domain contains core domain types for the guide chat.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPersona is returned when a guide slug does not name a persona.
var ErrUnknownPersona = errors.New("unknown guide persona")

// Persona is one of the fixed guide personalities.
type Persona int

const (
	VedicGuru Persona = iota
	CosmicStrategist
	MysticHealer
)

var personaSlugs = [...]string{
	VedicGuru:        "vedic_guru",
	CosmicStrategist: "cosmic_strategist",
	MysticHealer:     "mystic_healer",
}

var personaNames = [...]string{
	VedicGuru:        "The Vedic Guru",
	CosmicStrategist: "The Cosmic Strategist",
	MysticHealer:     "The Mystic Healer",
}

// Personas lists every persona in display order.
func Personas() []Persona {
	return []Persona{VedicGuru, CosmicStrategist, MysticHealer}
}

// Valid reports whether p is a declared persona.
func (p Persona) Valid() bool {
	return p >= VedicGuru && p <= MysticHealer
}

// String returns the persona slug.
func (p Persona) String() string {
	if !p.Valid() {
		return fmt.Sprintf("persona(%d)", int(p))
	}
	return personaSlugs[p]
}

// Name returns the display name, e.g. "The Vedic Guru".
func (p Persona) Name() string {
	if !p.Valid() {
		return ""
	}
	return personaNames[p]
}

// ParsePersona accepts a slug or a display name, case-insensitively.
func ParsePersona(s string) (Persona, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range Personas() {
		if s == personaSlugs[p] || s == strings.ToLower(personaNames[p]) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPersona, s)
}

// MarshalText encodes the persona as its slug.
func (p Persona) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPersona, int(p))
	}
	return []byte(personaSlugs[p]), nil
}

// UnmarshalText decodes a slug.
func (p *Persona) UnmarshalText(b []byte) error {
	v, err := ParsePersona(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// duration is a wrapper around time.Duration that supports TOML and YAML
// string decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML decodes a YAML scalar duration.
func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Decimal is a decimal.Decimal that decodes from TOML floats, integers and
// strings, and from YAML scalars, without a float round trip.
type Decimal struct {
	decimal.Decimal
}

// Dec builds a Decimal from a literal. It panics on malformed input and is
// meant for defaults and tests.
func Dec(s string) Decimal {
	return Decimal{decimal.RequireFromString(s)}
}

// UnmarshalTOML implements toml.Unmarshaler.
func (d *Decimal) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case string:
		return d.parse(x)
	case int64:
		d.Decimal = decimal.NewFromInt(x)
		return nil
	case float64:
		d.Decimal = decimal.NewFromFloat(x)
		return nil
	default:
		return fmt.Errorf("config: cannot decode %T as decimal", v)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Decimal) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("config: line %d: decimal must be a scalar", node.Line)
	}
	return d.parse(node.Value)
}

func (d *Decimal) parse(s string) error {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("config: invalid decimal %q: %w", s, err)
	}
	d.Decimal = v
	return nil
}

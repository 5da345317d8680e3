package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Duration accepts Go duration strings such as "250ms" or "1m30s" from
// YAML and BOOKMARKD_* variables. Negative values are rejected.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", text)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d Duration) String() string { return time.Duration(d).String() }

// Duration converts to time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

const redactedSecret = "[REDACTED]"

var errRedactedSecret = errors.New("secret holds a redacted placeholder")

// Secret is a credential loaded from config, currently the NATS token.
// Formatting and marshaling never reveal it; use Value at the point of use.
type Secret string

func (s Secret) mask() string {
	if s == "" {
		return ""
	}
	return redactedSecret
}

func (s Secret) String() string   { return s.mask() }
func (s Secret) GoString() string { return "config.Secret(" + redactedSecret + ")" }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.mask()), nil }
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.mask()) }

// UnmarshalText stores text as is. koanf decodes through this hook for
// both YAML and environment values.
func (s *Secret) UnmarshalText(text []byte) error {
	if string(text) == redactedSecret {
		return errRedactedSecret
	}
	*s = Secret(text)
	return nil
}

// UnmarshalJSON rejects the placeholder written by MarshalJSON so a dumped
// config cannot be loaded back with a bogus token.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(raw))
}

// Value returns the credential.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a credential was configured.
func (s Secret) IsSet() bool { return s != "" }

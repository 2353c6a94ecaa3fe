package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// cveIDPattern is the canonical CVE identifier shape: year, then at least five digits.
var cveIDPattern = regexp.MustCompile(`^CVE-\d{4}-\d{5,}$`)

// IsValidCVEID reports whether id has the canonical CVE identifier shape.
func IsValidCVEID(id string) bool {
	return cveIDPattern.MatchString(id)
}

// ValidateCVEID returns ErrValidationFailed when id is not a canonical CVE identifier.
func ValidateCVEID(id string) error {
	if !IsValidCVEID(id) {
		return fmt.Errorf("%w: malformed cve_id %q", ErrValidationFailed, id)
	}
	return nil
}

// Validate checks the record invariants enforced at write time.
func (r CVERecord) Validate() error {
	if r.ID == "" || r.DocumentID == "" {
		return fmt.Errorf("%w: cve record missing identifier", ErrValidationFailed)
	}
	return ValidateCVEID(r.CVEID)
}

// Validate checks the record invariants enforced at write time.
func (r ThreatActorRecord) Validate() error {
	if r.ID == "" || r.DocumentID == "" {
		return fmt.Errorf("%w: threat actor record missing identifier", ErrValidationFailed)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: threat actor without a name", ErrValidationFailed)
	}
	for _, alias := range r.Aliases {
		if alias == r.Name {
			return fmt.Errorf("%w: threat actor %q lists itself as an alias", ErrValidationFailed, r.Name)
		}
	}
	return nil
}

// AliasesText is the serialised form of the alias list as persisted and
// matched by alias filters: a JSON array without HTML escaping.
func (r ThreatActorRecord) AliasesText() string {
	return EncodeAliases(r.Aliases)
}

// EncodeAliases serialises an alias list. A nil list encodes as [].
func EncodeAliases(aliases []string) string {
	if aliases == nil {
		aliases = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(aliases); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// DecodeAliases parses the serialised alias list.
func DecodeAliases(text string) ([]string, error) {
	aliases := []string{}
	if text == "" {
		return aliases, nil
	}
	if err := json.Unmarshal([]byte(text), &aliases); err != nil {
		return nil, fmt.Errorf("decoding aliases: %w", err)
	}
	if aliases == nil {
		aliases = []string{}
	}
	return aliases, nil
}

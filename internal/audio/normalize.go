// SPDX-License-Identifier: MIT
package audio

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"audiomap/internal/platform"

	"github.com/google/uuid"
)

// uidNamespace scopes the v5 UUIDs this package derives. Changing it changes
// every UID ever handed out.
var uidNamespace = uuid.MustParse("5d1c7a8e-3f0b-5e42-9a6d-0c4e2b7f91a3")

// Normalizer turns raw descriptors into Devices for one platform.
//
// UID policy:
//
//   - with a NativeID the key is "native:" + NativeID;
//   - without one the key is "composite:" + HostAPI + "|" + canonical name +
//     "#" + n, where n is the descriptor's Index when it has one and otherwise
//     its ordinal among descriptors of the same direction, host API and
//     canonical name in this pass;
//   - the UID is the v5 UUID of platform|direction|key;
//   - keys still colliding within one pass get the first of "~2", "~3", ...
//     whose UID is not yet taken.
type Normalizer struct {
	platform platform.Platform
	backend  string
}

// NewNormalizer returns a Normalizer stamping devices with p and backend.
func NewNormalizer(p platform.Platform, backend string) *Normalizer {
	return &Normalizer{platform: p, backend: backend}
}

// Normalize converts one descriptor. index is its position in the adapter
// output and ordinal its occurrence count among same-named peers; both only
// matter when the descriptor has no NativeID.
func (n *Normalizer) Normalize(raw RawDescriptor, index, ordinal int) (Device, error) {
	if err := validate(raw, index); err != nil {
		return Device{}, err
	}
	name := strings.TrimSpace(raw.Name)
	return Device{
		ID:        n.uid(raw.Direction, identityKey(raw, name, ordinal)),
		Name:      name,
		Direction: raw.Direction,
		Platform:  n.platform,
		IsDefault: raw.IsDefault,
		Backend:   n.backend,
		ref:       raw.Ref,
	}, nil
}

// NormalizeAll converts a full adapter pass. Malformed descriptors are
// dropped and reported; the rest keep their order.
func (n *Normalizer) NormalizeAll(raws []RawDescriptor) ([]Device, []error) {
	devices := make([]Device, 0, len(raws))
	var skipped []error

	ordinals := make(map[string]int)
	issued := make(map[string]bool)

	for i, raw := range raws {
		if err := validate(raw, i); err != nil {
			skipped = append(skipped, err)
			continue
		}

		name := strings.TrimSpace(raw.Name)
		peer := raw.Direction.String() + "|" + raw.HostAPI + "|" + canonicalName(name)
		ordinal := ordinals[peer]
		ordinals[peer]++

		d, _ := n.Normalize(raw, i, ordinal)
		// A suffixed key may equal another descriptor's real key, so keep
		// counting until the UID is unused in this pass.
		key := identityKey(raw, name, ordinal)
		for c := 2; issued[d.ID]; c++ {
			d.ID = n.uid(raw.Direction, key+"~"+strconv.Itoa(c))
		}
		issued[d.ID] = true
		devices = append(devices, d)
	}
	return devices, skipped
}

func (n *Normalizer) uid(dir Direction, key string) string {
	return uuid.NewSHA1(uidNamespace, []byte(string(n.platform)+"|"+dir.String()+"|"+key)).String()
}

func validate(raw RawDescriptor, index int) error {
	if !utf8.ValidString(raw.Name) {
		return &NormalizationError{Index: index, Field: "name", Reason: "not valid UTF-8"}
	}
	if strings.TrimSpace(raw.Name) == "" {
		return &NormalizationError{Index: index, Field: "name", Reason: "empty"}
	}
	if !raw.Direction.Valid() {
		return &NormalizationError{Index: index, Field: "direction", Reason: "unknown direction " + strconv.Itoa(int(raw.Direction))}
	}
	return nil
}

func identityKey(raw RawDescriptor, name string, ordinal int) string {
	if id := strings.TrimSpace(raw.NativeID); id != "" {
		return "native:" + id
	}
	n := ordinal
	if raw.Index >= 0 {
		n = raw.Index
	}
	return "composite:" + raw.HostAPI + "|" + canonicalName(name) + "#" + strconv.Itoa(n)
}

// canonicalName folds case, whitespace and punctuation so cosmetic renames
// ("MacBook Pro Speakers" vs "macbook-pro  speakers") keep their UID.
func canonicalName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	space := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

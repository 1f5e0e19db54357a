// Package mod provides discovery, aggregation, and lifecycle management of
// mods: loadable packages of code, scenes, and assets with declared
// dependencies and identifier conflict detection against other mods.
package mod

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	// DescriptorFileName is the descriptor file every mod directory carries.
	DescriptorFileName = "mod.json"

	// maxDescriptorSize limits descriptor file size to prevent memory
	// exhaustion (256KB).
	maxDescriptorSize int64 = 256 * 1024
)

// Platform is a bitset of platforms a mod supports.
type Platform uint32

// Platform bits. The directory layout contract names platform
// sub-directories after these values.
const (
	PlatformWindows Platform = 1 << iota
	PlatformLinux
	PlatformOSX
	PlatformAndroid
	PlatformIOS
)

var platformNames = []struct {
	bit  Platform
	name string
}{
	{PlatformWindows, "windows"},
	{PlatformLinux, "linux"},
	{PlatformOSX, "osx"},
	{PlatformAndroid, "android"},
	{PlatformIOS, "ios"},
}

// Has reports whether every bit of q is set.
func (p Platform) Has(q Platform) bool {
	return p&q == q
}

// String returns the pipe-joined platform names.
func (p Platform) String() string {
	var parts []string
	for _, pn := range platformNames {
		if p.Has(pn.bit) {
			parts = append(parts, pn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// DirName returns the platform sub-directory name for a single-platform
// value, or an error for zero or combined values.
func (p Platform) DirName() (string, error) {
	for _, pn := range platformNames {
		if p == pn.bit {
			return pn.name, nil
		}
	}
	return "", fmt.Errorf("platform %q does not name a single platform directory", p)
}

// ParsePlatform parses a single platform name.
func ParsePlatform(s string) (Platform, error) {
	for _, pn := range platformNames {
		if strings.EqualFold(s, pn.name) {
			return pn.bit, nil
		}
	}
	return 0, fmt.Errorf("unknown platform %q", s)
}

// Content is a bitset of the content types a mod carries.
type Content uint32

// Content bits.
const (
	ContentCode Content = 1 << iota
	ContentScenes
	ContentAssets
)

// Has reports whether every bit of q is set.
func (c Content) Has(q Content) bool {
	return c&q == q
}

// String returns the pipe-joined content type names.
func (c Content) String() string {
	var parts []string
	if c.Has(ContentCode) {
		parts = append(parts, "code")
	}
	if c.Has(ContentScenes) {
		parts = append(parts, "scenes")
	}
	if c.Has(ContentAssets) {
		parts = append(parts, "assets")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Descriptor is the structured record identifying one mod. It round-trips
// losslessly through Save and LoadDescriptor.
type Descriptor struct {
	// ID is the mod identifier. Lower-cased for path derivation.
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// Author is the mod author.
	Author string `json:"author"`
	// Description is a brief description of the mod.
	Description string `json:"description"`
	// Version is the mod's semantic version.
	Version string `json:"version"`
	// HostVersion is the minimum host version the mod's binaries were
	// built against.
	HostVersion string `json:"hostVersion"`
	// Platforms is the set of platforms the mod supports.
	Platforms Platform `json:"platforms"`
	// Content is the set of content types the mod carries.
	Content Content `json:"content"`
	// Enabled indicates whether the mod participates in loading.
	Enabled bool `json:"enabled"`
	// Dependencies lists the ids of mods this mod requires.
	Dependencies []string `json:"dependencies"`
}

// PathID returns the id lower-cased for path derivation.
func (d *Descriptor) PathID() string {
	return strings.ToLower(d.ID)
}

// String returns a human-readable mod identity.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s@%s", d.ID, d.Version)
}

// Clone returns a deep copy of the descriptor.
func (d *Descriptor) Clone() *Descriptor {
	clone := *d
	if d.Dependencies != nil {
		clone.Dependencies = make([]string, len(d.Dependencies))
		copy(clone.Dependencies, d.Dependencies)
	}
	return &clone
}

// Validate checks the descriptor for structural problems.
func (d *Descriptor) Validate() error {
	ve := &ValidationError{}

	if d.ID == "" {
		ve.Add("id is required")
	} else if err := validateIDFormat(d.ID); err != nil {
		ve.Add(err.Error())
	}

	if d.Name == "" {
		ve.Add("name is required")
	}

	if d.Version == "" {
		ve.Add("version is required")
	} else if !semver.IsValid(normalizeSemver(d.Version)) {
		ve.Addf("version %q is not valid semantic versioning", d.Version)
	}

	if d.HostVersion != "" && !semver.IsValid(normalizeSemver(d.HostVersion)) {
		ve.Addf("hostVersion %q is not valid semantic versioning", d.HostVersion)
	}

	for i, dep := range d.Dependencies {
		if dep == "" {
			ve.Addf("dependencies[%d] is empty", i)
		}
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

// validateIDFormat checks a mod id against the naming contract: starts with
// a letter, then letters, digits, hyphens, or underscores.
func validateIDFormat(id string) error {
	if len(id) < 2 {
		return fmt.Errorf("mod id %q is too short (minimum 2 characters)", id)
	}
	if len(id) > 64 {
		return fmt.Errorf("mod id %q is too long (maximum 64 characters)", id)
	}

	first := id[0]
	isLetter := (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')
	if !isLetter {
		return fmt.Errorf("mod id %q must start with a letter", id)
	}

	for i, c := range id {
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !isLetter && !isDigit && c != '-' && c != '_' {
			return fmt.Errorf("mod id %q contains invalid character %q at position %d", id, c, i)
		}
	}
	return nil
}

// LoadDescriptor reads and validates a descriptor file.
func LoadDescriptor(path string) (*Descriptor, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, ErrDescriptorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking descriptor: %w", err)
	}

	if info.Size() > maxDescriptorSize {
		return nil, &DescriptorSizeError{Size: info.Size(), Limit: maxDescriptorSize}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening descriptor: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxDescriptorSize))
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing descriptor: %w", err)
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor: %w", err)
	}

	return &d, nil
}

// Save writes the descriptor to path. A nil dependency list is written as
// an empty list so the record round-trips losslessly.
func (d *Descriptor) Save(path string) error {
	out := d.Clone()
	if out.Dependencies == nil {
		out.Dependencies = []string{}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing descriptor: %w", err)
	}
	return nil
}

// hostVersionSatisfied reports whether the running host version meets the
// descriptor's minimum. Empty on either side disables the check.
func hostVersionSatisfied(host, minimum string) bool {
	if host == "" || minimum == "" {
		return true
	}
	h, m := normalizeSemver(host), normalizeSemver(minimum)
	if !semver.IsValid(h) || !semver.IsValid(m) {
		return false
	}
	return semver.Compare(h, m) >= 0
}

func normalizeSemver(v string) string {
	if v == "" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

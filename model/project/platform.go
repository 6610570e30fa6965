package project

import (
	"fmt"
	"strings"
)

// Platform is a compilation target a module is built for.
type Platform uint8

const (
	PlatformUnknown Platform = iota
	PlatformJVM
	PlatformJS
	PlatformNative
	PlatformWasm
)

var platformNames = map[Platform]string{
	PlatformUnknown: "unknown",
	PlatformJVM:     "jvm",
	PlatformJS:      "js",
	PlatformNative:  "native",
	PlatformWasm:    "wasm",
}

func (p Platform) String() string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	return fmt.Sprintf("platform(%d)", uint8(p))
}

// ParsePlatform converts a platform name into a Platform.
func ParsePlatform(s string) (Platform, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for p, n := range platformNames {
		if n == name && p != PlatformUnknown {
			return p, nil
		}
	}
	return PlatformUnknown, fmt.Errorf("unknown platform %q", s)
}

// Family groups platform sets that share one session factory.
type Family uint8

const (
	// FamilyCommon covers mixed, empty and unrecognized platform sets.
	FamilyCommon Family = iota
	FamilyJVM
	FamilyJS
	FamilyNative
)

func (f Family) String() string {
	switch f {
	case FamilyJVM:
		return "jvm"
	case FamilyJS:
		return "js"
	case FamilyNative:
		return "native"
	default:
		return "common"
	}
}

// FamilyOf returns the family every platform of the set belongs to, or
// FamilyCommon if there is no single such family.
func FamilyOf(platforms []Platform) Family {
	if len(platforms) == 0 {
		return FamilyCommon
	}
	all := func(want Platform) bool {
		for _, p := range platforms {
			if p != want {
				return false
			}
		}
		return true
	}
	switch {
	case all(PlatformJVM):
		return FamilyJVM
	case all(PlatformJS):
		return FamilyJS
	case all(PlatformNative):
		return FamilyNative
	default:
		return FamilyCommon
	}
}

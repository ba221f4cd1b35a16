// SPDX-License-Identifier: MPL-2.0

package semver

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidVersion is the sentinel error wrapped by version parse failures.
// ErrInvalidConstraint is the sentinel error wrapped by constraint parse failures.
var (
	ErrInvalidVersion    = errors.New("invalid semantic version")
	ErrInvalidConstraint = errors.New("invalid version constraint")
)

type (
	// Version is a parsed semantic version: major.minor.patch with an
	// optional pre-release label. Build metadata is accepted on parse but
	// ignored for ordering, per semver precedence rules.
	Version struct {
		Major      int
		Minor      int
		Patch      int
		Prerelease string
		Original   string
	}

	// Constraint is a single range clause: an operator and a boundary version.
	Constraint struct {
		// Op is the comparison operator (=, ^, ~, >, >=, <, <=).
		Op string
		// Version is the boundary version to compare against.
		Version *Version
		// Original is the clause as written.
		Original string
	}

	// ConstraintSet is an ordered conjunction of clauses. A candidate
	// satisfies the set only if it satisfies every clause. The empty set
	// matches any candidate.
	ConstraintSet []*Constraint
)

var versionRegex = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:-([0-9A-Za-z\-\.]+))?(?:\+([0-9A-Za-z\-\.]+))?$`)

var clauseRegex = regexp.MustCompile(`^([~^]|>=|<=|>|<|=)?\s*v?(\d+(?:\.\d+)?(?:\.\d+)?(?:-[0-9A-Za-z\-\.]+)?)$`)

// Parse parses a version string. Malformed strings are an error, never
// silently coerced.
func Parse(s string) (*Version, error) {
	matches := versionRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	v := &Version{Original: s}

	var err error
	v.Major, err = strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("%w: major segment of %q: %v", ErrInvalidVersion, s, err)
	}

	if matches[2] != "" {
		v.Minor, err = strconv.Atoi(matches[2])
		if err != nil {
			return nil, fmt.Errorf("%w: minor segment of %q: %v", ErrInvalidVersion, s, err)
		}
	}

	if matches[3] != "" {
		v.Patch, err = strconv.Atoi(matches[3])
		if err != nil {
			return nil, fmt.Errorf("%w: patch segment of %q: %v", ErrInvalidVersion, s, err)
		}
	}

	v.Prerelease = matches[4]

	return v, nil
}

// IsValid reports whether s parses as a semantic version.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String returns the version as originally written.
func (v *Version) String() string {
	return v.Original
}

// Compare returns -1 if v < other, 0 if equal, 1 if v > other.
// A release orders after its own pre-releases (1.0.0-rc.1 < 1.0.0).
func (v *Version) Compare(other *Version) int {
	if v.Major != other.Major {
		return cmpInt(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return cmpInt(v.Minor, other.Minor)
	}
	if v.Patch != other.Patch {
		return cmpInt(v.Patch, other.Patch)
	}

	if v.Prerelease == "" && other.Prerelease != "" {
		return 1
	}
	if v.Prerelease != "" && other.Prerelease == "" {
		return -1
	}
	if v.Prerelease != other.Prerelease {
		if v.Prerelease < other.Prerelease {
			return -1
		}
		return 1
	}

	return 0
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	return 1
}

// ParseConstraint parses a single range clause such as ">=1.2.0" or "^1.0".
func ParseConstraint(s string) (*Constraint, error) {
	s = strings.TrimSpace(s)

	matches := clauseRegex.FindStringSubmatch(s)
	if matches == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidConstraint, s)
	}

	op := matches[1]
	if op == "" {
		op = "="
	}

	boundary, err := Parse(matches[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidConstraint, s, err)
	}

	return &Constraint{Op: op, Version: boundary, Original: s}, nil
}

// ParseConstraintSet parses a comma-joined conjunction of clauses, e.g.
// ">=1.2,<2.0". An empty expression yields the empty set, which matches
// any version.
func ParseConstraintSet(expr string) (ConstraintSet, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	var set ConstraintSet
	for _, clause := range strings.Split(expr, ",") {
		c, err := ParseConstraint(clause)
		if err != nil {
			return nil, err
		}
		set = append(set, c)
	}
	return set, nil
}

// ParseConstraintSets parses each expression in exprs into a ConstraintSet.
func ParseConstraintSets(exprs []string) ([]ConstraintSet, error) {
	sets := make([]ConstraintSet, 0, len(exprs))
	for _, expr := range exprs {
		set, err := ParseConstraintSet(expr)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// Matches reports whether v satisfies the clause.
func (c *Constraint) Matches(v *Version) bool {
	switch c.Op {
	case "=":
		return v.Compare(c.Version) == 0

	case "^":
		// Caret: changes that do not modify the left-most non-zero digit.
		// ^1.2.3 := >=1.2.3 <2.0.0
		// ^0.2.3 := >=0.2.3 <0.3.0
		// ^0.0.3 := >=0.0.3 <0.0.4
		if v.Compare(c.Version) < 0 {
			return false
		}
		if c.Version.Major != 0 {
			return v.Major == c.Version.Major
		}
		if c.Version.Minor != 0 {
			return v.Major == 0 && v.Minor == c.Version.Minor
		}
		return v.Major == 0 && v.Minor == 0 && v.Patch == c.Version.Patch

	case "~":
		// Tilde: patch-level changes only. ~1.2.3 := >=1.2.3 <1.3.0
		if v.Compare(c.Version) < 0 {
			return false
		}
		return v.Major == c.Version.Major && v.Minor == c.Version.Minor

	case ">":
		return v.Compare(c.Version) > 0

	case ">=":
		return v.Compare(c.Version) >= 0

	case "<":
		return v.Compare(c.Version) < 0

	case "<=":
		return v.Compare(c.Version) <= 0

	default:
		return false
	}
}

// Match reports whether v satisfies every clause in the set. The empty set
// matches anything.
func (s ConstraintSet) Match(v *Version) bool {
	for _, c := range s {
		if !c.Matches(v) {
			return false
		}
	}
	return true
}

// String renders the set as the comma-joined expression it was parsed from.
// The empty set renders as "Any".
func (s ConstraintSet) String() string {
	if len(s) == 0 {
		return "Any"
	}
	clauses := make([]string, len(s))
	for i, c := range s {
		clauses[i] = c.Original
	}
	return strings.Join(clauses, ",")
}

// Match is the convenience form over raw strings: it parses candidate and
// expr and reports satisfaction. An empty expr matches any candidate.
// Malformed inputs are an error.
func Match(candidate, expr string) (bool, error) {
	v, err := Parse(candidate)
	if err != nil {
		return false, err
	}
	set, err := ParseConstraintSet(expr)
	if err != nil {
		return false, err
	}
	return set.Match(v), nil
}

// MatchAll reports whether candidate satisfies every expression in exprs.
func MatchAll(candidate string, exprs []string) (bool, error) {
	for _, expr := range exprs {
		ok, err := Match(candidate, expr)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// SortVersions sorts version strings in descending order (newest first).
// Strings that do not parse are dropped.
func SortVersions(versions []string) []string {
	var parsed []*Version
	for _, vs := range versions {
		v, err := Parse(vs)
		if err != nil {
			continue
		}
		parsed = append(parsed, v)
	}

	sort.Slice(parsed, func(i, j int) bool {
		return parsed[i].Compare(parsed[j]) > 0
	})

	result := make([]string, len(parsed))
	for i, v := range parsed {
		result[i] = v.Original
	}
	return result
}

// Package invalidation implements glob-style key patterns and their
// translation to each tier's native matching mechanism: in-process regexp
// matching for the memory tier, MATCH globs for Redis SCAN, and LIKE
// expressions for the SQL tier.
package invalidation

import (
	"regexp"
	"strings"

	"cache-engine/internal/common/errors"
)

// Pattern is a compiled glob pattern over the key namespace. Supported
// wildcards are '*' (any run of characters) and '?' (any single character);
// keys are flat strings, so wildcards match every character including
// separators.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

// Compile validates and compiles a glob pattern.
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, errors.Validation("invalidation pattern must not be empty").WithCode("invalid_pattern")
	}

	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, errors.Validation("invalid invalidation pattern: " + pattern).WithCode("invalid_pattern")
	}

	return &Pattern{raw: pattern, re: re}, nil
}

// Match reports whether key matches the pattern.
func (p *Pattern) Match(key string) bool {
	return p.re.MatchString(key)
}

// String returns the original glob pattern.
func (p *Pattern) String() string {
	return p.raw
}

// IsLiteral reports whether the pattern contains no wildcards and therefore
// matches exactly one key.
func (p *Pattern) IsLiteral() bool {
	return !strings.ContainsAny(p.raw, "*?")
}

// RedisPattern converts a glob pattern into a Redis MATCH pattern. Redis
// SCAN understands '*' and '?' natively; its extra specials are escaped so
// they keep their literal meaning.
func RedisPattern(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '[', ']', '^', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SQLLike converts a glob pattern into a LIKE expression for use with
// `LIKE ? ESCAPE '\'`. '%', '_' and '\' occurring literally in the pattern
// are escaped.
func SQLLike(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteByte('%')
		case '?':
			sb.WriteByte('_')
		case '%', '_', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

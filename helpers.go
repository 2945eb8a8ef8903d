package extbuild

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
)

// MatchesPattern checks if a name matches any of the given regex patterns.
//
// Invalid patterns are silently skipped.
//
// # Example
//
//	// Is this the MSVC driver?
//	if MatchesPattern(name, `^cl$`, `^clang-cl$`) {
//	    // use MSVC flag syntax
//	}
func MatchesPattern(name string, patterns ...string) bool {
	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, name); matched {
			return true
		}
	}
	return false
}

// MatchesExtension checks if a filename has any of the given extensions.
//
// This is a case-insensitive suffix check. Extensions may be given with or
// without a leading dot.
func MatchesExtension(filename string, extensions ...string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// BuildError creates a standardized build error with output context.
//
// The step names what failed ("compile", "link", ...). The output lines are
// attached as an error detail, so err.Error() stays short while
// errors.FlattenDetails and %+v show the full compiler output.
//
// # Format
//
// With error:
//
//	compile failed: exit status 1
//
// Without error:
//
//	compile failed
func BuildError(step string, output []string, err error) error {
	var wrapped error
	if err != nil {
		wrapped = errors.Wrapf(err, "%s failed", step)
	} else {
		wrapped = errors.Newf("%s failed", step)
	}

	if outputStr := strings.TrimSpace(strings.Join(output, "\n")); outputStr != "" {
		wrapped = errors.WithDetail(wrapped, fmt.Sprintf("Build output:\n%s", outputStr))
	}

	return wrapped
}

// mergeFlags places the prefix flags that are not already present in
// existing in front of existing. The prefix is deduplicated; existing is
// returned unchanged after it.
func mergeFlags(prefix, existing []string) []string {
	seen := make(map[string]struct{}, len(prefix)+len(existing))
	for _, flag := range existing {
		seen[flag] = struct{}{}
	}

	merged := make([]string, 0, len(prefix)+len(existing))
	for _, flag := range prefix {
		if _, ok := seen[flag]; ok {
			continue
		}
		seen[flag] = struct{}{}
		merged = append(merged, flag)
	}

	return append(merged, existing...)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	var result []string

	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}

	return result
}

// joinArgs renders arguments for display, quoted the way a shell would need.
func joinArgs(args []string) string {
	return shellquote.Join(args...)
}

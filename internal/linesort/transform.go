package linesort

import (
	"slices"
	"strings"
)

// SortLines splits text on "\n", sorts the lines in ascending byte order and
// joins them back with "\n". No trailing newline is added or removed, so an
// input ending in "\n" contributes an empty line that sorts first. For valid
// UTF-8, byte order equals code-point order, which keeps the result
// independent of locale.
func SortLines(text string) string {
	lines := strings.Split(text, "\n")
	slices.Sort(lines)
	return strings.Join(lines, "\n")
}

// DestinationKey derives the output key from the last path segment of
// sourceKey. A name ending in cfg.InputExtension has the first occurrence of
// that extension replaced by cfg.OutputExtension; any other name gets
// cfg.OutputExtension appended. The result is prefixed with cfg.OutputPrefix.
func DestinationKey(cfg Config, sourceKey string) string {
	name := sourceKey[strings.LastIndex(sourceKey, "/")+1:]
	if strings.HasSuffix(name, cfg.InputExtension) {
		name = strings.Replace(name, cfg.InputExtension, cfg.OutputExtension, 1)
	} else {
		name += cfg.OutputExtension
	}
	return cfg.OutputPrefix + name
}

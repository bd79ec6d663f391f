package reload

import (
	"fmt"
	"strconv"
	"strings"
)

// fragmentKey is the fragment parameter carrying the last seen version
// across a full reload. The fragment is used instead of storage because a
// sandboxed frame may have no storage access.
const fragmentKey = "__preview_version"

// EncodeFragment appends the last seen version to a URL's fragment so it
// survives the navigation a full reload performs.
//
// Parameters:
//   - url: The navigation target
//   - version: The last seen broadcast version
//
// Returns:
//   - string: The URL with the version parameter in its fragment
func EncodeFragment(url string, version int64) string {
	sep := "#"
	if strings.Contains(url, "#") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%d", url, sep, fragmentKey, version)
}

// ExtractFragment pulls the version parameter out of a URL and returns the
// URL with the parameter stripped, so the marker never leaks into
// application-visible URL state.
//
// Parameters:
//   - url: The URL to inspect
//
// Returns:
//   - int64: The extracted version, -1 when absent
//   - string: The URL with the marker removed
//   - bool: Whether a version was present
func ExtractFragment(url string) (int64, string, bool) {
	hashAt := strings.IndexByte(url, '#')
	if hashAt < 0 {
		return -1, url, false
	}

	base := url[:hashAt]
	frag := url[hashAt+1:]

	var kept []string
	version := int64(-1)
	found := false
	for _, part := range strings.Split(frag, "&") {
		if v, ok := strings.CutPrefix(part, fragmentKey+"="); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				version = n
				found = true
				continue
			}
		}
		if part != "" {
			kept = append(kept, part)
		}
	}

	if !found {
		return -1, url, false
	}
	cleaned := base
	if len(kept) > 0 {
		cleaned += "#" + strings.Join(kept, "&")
	}
	return version, cleaned, true
}

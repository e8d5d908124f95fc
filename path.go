package resourcefactory

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// maxCanonicalPathLen is the maximum canonical path length in bytes,
// including the terminator. See DESIGN.md: overflow currently truncates
// rather than returning PathTooLong, mirroring the source's acknowledged
// open issue (spec §9).
const maxCanonicalPathLen = 1024

// canonicalize derives a stable cache key from a base directory and a
// caller-supplied relative name: concatenate with a single separator, then
// collapse any run of consecutive separators into one. It does not resolve
// ".." or symlinks, and it never touches the filesystem, so a cache hit
// never pays for a syscall.
func canonicalize(base, name string) string {
	var b strings.Builder
	b.Grow(len(base) + len(name) + 1)
	b.WriteString(base)
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(name, "/") {
		b.WriteByte('/')
	}
	b.WriteString(name)

	collapsed := collapseSeparators(b.String())
	if len(collapsed)+1 > maxCanonicalPathLen {
		collapsed = collapsed[:maxCanonicalPathLen-1]
	}
	return collapsed
}

// collapseSeparators collapses runs of consecutive '/' into a single '/'.
func collapseSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// hashPath computes the 64-bit cache key for a canonical path using a
// non-cryptographic hash (xxhash), pure and collision-resistant enough for
// cache identity purposes.
func hashPath(cpath string) uint64 {
	return xxhash.Sum64String(cpath)
}

// extensionOf returns the characters after the last '.' in name, or ""
// (and ok=false) if name has no extension.
func extensionOf(name string) (ext string, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return "", false
	}
	// A leading dot with no other dot (e.g. ".gitignore", "sub/.gitignore")
	// marks a dotfile, not an extension.
	if i == 0 || name[i-1] == '/' {
		return "", false
	}
	// A dot inside a directory component (e.g. "dir.with.dot/file") is not
	// an extension of the file name.
	if strings.LastIndexByte(name, '/') >= i {
		return "", false
	}
	return name[i+1:], true
}

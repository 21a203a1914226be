package adapters

import (
	debversion "github.com/knqyf263/go-deb-version"
)

// versionCache memoizes parsed Debian versions so sorting parses every
// version string once. Unparseable values are remembered too.
type versionCache struct {
	parsed map[string]debversion.Version
	bad    map[string]struct{}
}

func newVersionCache() *versionCache {
	return &versionCache{
		parsed: map[string]debversion.Version{},
		bad:    map[string]struct{}{},
	}
}

func (c *versionCache) debVersion(value string) (debversion.Version, bool) {
	if v, ok := c.parsed[value]; ok {
		return v, true
	}
	if _, ok := c.bad[value]; ok {
		return debversion.Version{}, false
	}
	v, err := debversion.NewVersion(value)
	if err != nil {
		c.bad[value] = struct{}{}
		return debversion.Version{}, false
	}
	c.parsed[value] = v
	return v, true
}

// less orders two version strings. Valid Debian versions compare by
// Debian rules; when either side is invalid the plain strings are compared.
func (c *versionCache) less(a, b string) bool {
	va, okA := c.debVersion(a)
	vb, okB := c.debVersion(b)
	if !okA || !okB {
		return a < b
	}
	return va.Compare(vb) < 0
}

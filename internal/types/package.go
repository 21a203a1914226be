package types

// ControlField is a single "Key: value" entry of a Debian control stanza.
// Multi-line values keep their continuation lines, newline separated.
type ControlField struct {
	Key   string
	Value string
}

// PackageStanza is one binary package entry of a Packages index.
type PackageStanza struct {
	Fields   []ControlField
	Filename string
	Size     int64
	MD5Sum   string
	SHA1     string
	SHA256   string
}

func (p PackageStanza) Field(key string) string {
	for _, field := range p.Fields {
		if field.Key == key {
			return field.Value
		}
	}
	return ""
}

func (p PackageStanza) Package() string {
	return p.Field("Package")
}

func (p PackageStanza) Version() string {
	return p.Field("Version")
}

func (p PackageStanza) Architecture() string {
	return p.Field("Architecture")
}

// IndexFile records a written index file for the Release checksum lists.
// Path is relative to the distribution directory.
type IndexFile struct {
	Path   string
	Size   int64
	MD5Sum string
	SHA1   string
	SHA256 string
}

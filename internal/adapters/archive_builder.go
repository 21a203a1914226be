package adapters

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"apt-archive/internal/ports"
	"apt-archive/internal/types"
)

const defaultBuilderParallelism = 4

// Fields the builder computes itself; any copy found in a control file is
// dropped.
var generatedFields = map[string]struct{}{
	"Filename": {},
	"Size":     {},
	"MD5sum":   {},
	"SHA1":     {},
	"SHA256":   {},
}

// DebianArchiveBuilder generates Packages indexes and a Release file for one
// repository from the .deb files under pool/<component>/.
//
// Pool scanning and per architecture index generation fan out with an
// errgroup, and every goroutine is joined before Publish returns.
type DebianArchiveBuilder struct {
	Signer      ports.SignerPort
	Parallelism int
	Origin      string
	Clock       func() time.Time
}

func NewDebianArchiveBuilder(signer ports.SignerPort, parallelism int) DebianArchiveBuilder {
	if parallelism <= 0 {
		parallelism = defaultBuilderParallelism
	}
	return DebianArchiveBuilder{
		Signer:      signer,
		Parallelism: parallelism,
		Origin:      "apt-archive",
		Clock:       time.Now,
	}
}

type indexJob struct {
	component string
	arch      string
}

func (b DebianArchiveBuilder) Publish(ctx context.Context, definition types.RepositoryDefinition, distributionDir string, writer ports.ArchiveWriterPort, reader ports.ArchiveReaderPort, options ports.PublishOptions) error {
	assert.NotEmpty(ctx, definition.Name, "repository name must be set")
	assert.NotEmpty(ctx, distributionDir, "distribution directory must be set")
	if len(definition.Architectures) == 0 || len(definition.Components) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("repository %s needs architectures and components", definition.Name))
	}
	pools, err := b.scanPools(ctx, reader, definition.Components)
	if err != nil {
		return err
	}

	var jobs []indexJob
	for _, component := range definition.Components {
		for _, arch := range definition.Architectures {
			jobs = append(jobs, indexJob{component: component, arch: arch})
		}
	}
	written := make([][]types.IndexFile, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism())
	for i, job := range jobs {
		g.Go(func() error {
			files, err := b.writePackagesIndexes(gctx, writer, distributionDir, job, pools[job.component], options.CompressionLevel)
			written[i] = files
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	var files []types.IndexFile
	for _, group := range written {
		files = append(files, group...)
	}

	release := renderRelease(definition, b.Origin, b.now(), files)
	if err := writer.Write(ctx, path.Join(distributionDir, "Release"), bytes.NewReader(release)); err != nil {
		return err
	}
	if strings.TrimSpace(options.SigningKey) != "" {
		if err := b.sign(ctx, writer, distributionDir, options.SigningKey, release); err != nil {
			return err
		}
	}
	log.Ctx(ctx).Debug().
		Str("repository", definition.Name).
		Int("indexes", len(files)).
		Bool("signed", options.SigningKey != "").
		Msg("release written")
	return nil
}

func (b DebianArchiveBuilder) sign(ctx context.Context, writer ports.ArchiveWriterPort, distributionDir string, key string, release []byte) error {
	if b.Signer == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("signing key configured but no signer available")
	}
	inRelease, err := b.Signer.ClearSign(ctx, key, release)
	if err != nil {
		return err
	}
	if err := writer.Write(ctx, path.Join(distributionDir, "InRelease"), bytes.NewReader(inRelease)); err != nil {
		return err
	}
	signature, err := b.Signer.DetachSign(ctx, key, release)
	if err != nil {
		return err
	}
	return writer.Write(ctx, path.Join(distributionDir, "Release.gpg"), bytes.NewReader(signature))
}

func (b DebianArchiveBuilder) scanPools(ctx context.Context, reader ports.ArchiveReaderPort, components []string) (map[string][]types.PackageStanza, error) {
	scanned := make([][]types.PackageStanza, len(components))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism())
	for i, component := range components {
		g.Go(func() error {
			stanzas, err := scanPool(gctx, reader, component)
			scanned[i] = stanzas
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	pools := make(map[string][]types.PackageStanza, len(components))
	for i, component := range components {
		pools[component] = scanned[i]
	}
	return pools, nil
}

func scanPool(ctx context.Context, reader ports.ArchiveReaderPort, component string) ([]types.PackageStanza, error) {
	files, err := reader.List(ctx, path.Join("pool", component))
	if err != nil {
		return nil, err
	}
	var stanzas []types.PackageStanza
	for _, file := range files {
		if !strings.HasSuffix(file, ".deb") {
			continue
		}
		stanza, err := readPoolPackage(ctx, reader, file)
		if err != nil {
			return nil, err
		}
		stanzas = append(stanzas, stanza)
	}
	return stanzas, nil
}

func readPoolPackage(ctx context.Context, reader ports.ArchiveReaderPort, file string) (types.PackageStanza, error) {
	rc, err := reader.Open(ctx, file)
	if err != nil {
		return types.PackageStanza{}, err
	}
	defer rc.Close()
	md5Hash, sha1Hash, sha256Hash := md5.New(), sha1.New(), sha256.New()
	counter := &writeCounter{}
	tee := io.TeeReader(rc, io.MultiWriter(md5Hash, sha1Hash, sha256Hash, counter))
	fields, err := readDebControl(tee)
	if err != nil {
		return types.PackageStanza{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid package %s", file)).
			WithCause(err)
	}
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return types.PackageStanza{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read package %s", file)).
			WithCause(err)
	}
	kept := fields[:0]
	for _, field := range fields {
		if _, ok := generatedFields[field.Key]; ok {
			continue
		}
		kept = append(kept, field)
	}
	stanza := types.PackageStanza{
		Fields:   kept,
		Filename: file,
		Size:     counter.written,
		MD5Sum:   hex.EncodeToString(md5Hash.Sum(nil)),
		SHA1:     hex.EncodeToString(sha1Hash.Sum(nil)),
		SHA256:   hex.EncodeToString(sha256Hash.Sum(nil)),
	}
	if stanza.Package() == "" || stanza.Version() == "" || stanza.Architecture() == "" {
		return types.PackageStanza{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("package %s lacks Package, Version or Architecture", file))
	}
	return stanza, nil
}

func (b DebianArchiveBuilder) writePackagesIndexes(ctx context.Context, writer ports.ArchiveWriterPort, distributionDir string, job indexJob, pool []types.PackageStanza, level int) ([]types.IndexFile, error) {
	var selected []types.PackageStanza
	for _, stanza := range pool {
		arch := stanza.Architecture()
		if arch == job.arch || arch == "all" {
			selected = append(selected, stanza)
		}
	}
	sortStanzas(selected)
	plain := renderPackages(selected)
	base := path.Join(job.component, "binary-"+job.arch, "Packages")

	files := make([]types.IndexFile, 0, len(indexCompressions)+1)
	for _, compression := range append([]Compression{CompressionNone}, indexCompressions...) {
		data, err := compression.Compress(plain, level)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to compress %s", base+compression.Extension())).
				WithCause(err)
		}
		rel := base + compression.Extension()
		if err := writer.Write(ctx, path.Join(distributionDir, rel), bytes.NewReader(data)); err != nil {
			return nil, err
		}
		files = append(files, indexFileFor(rel, data))
	}
	return files, nil
}

// sortStanzas orders by package name, then by ascending Debian version.
func sortStanzas(stanzas []types.PackageStanza) {
	versions := newVersionCache()
	sort.SliceStable(stanzas, func(i, j int) bool {
		pi, pj := stanzas[i].Package(), stanzas[j].Package()
		if pi != pj {
			return pi < pj
		}
		return versions.less(stanzas[i].Version(), stanzas[j].Version())
	})
}

func renderPackages(stanzas []types.PackageStanza) []byte {
	var buf bytes.Buffer
	for i, stanza := range stanzas {
		if i > 0 {
			buf.WriteByte('\n')
		}
		for _, field := range stanza.Fields {
			fmt.Fprintf(&buf, "%s: %s\n", field.Key, field.Value)
		}
		fmt.Fprintf(&buf, "Filename: %s\n", stanza.Filename)
		fmt.Fprintf(&buf, "Size: %d\n", stanza.Size)
		fmt.Fprintf(&buf, "MD5sum: %s\n", stanza.MD5Sum)
		fmt.Fprintf(&buf, "SHA1: %s\n", stanza.SHA1)
		fmt.Fprintf(&buf, "SHA256: %s\n", stanza.SHA256)
	}
	return buf.Bytes()
}

func renderRelease(definition types.RepositoryDefinition, origin string, now time.Time, files []types.IndexFile) []byte {
	var buf bytes.Buffer
	if origin != "" {
		fmt.Fprintf(&buf, "Origin: %s\n", origin)
	}
	fmt.Fprintf(&buf, "Label: %s\n", definition.Name)
	if definition.Suite != "" {
		fmt.Fprintf(&buf, "Suite: %s\n", definition.Suite)
	}
	if definition.Codename != "" {
		fmt.Fprintf(&buf, "Codename: %s\n", definition.Codename)
	}
	fmt.Fprintf(&buf, "Date: %s\n", now.UTC().Format(time.RFC1123))
	fmt.Fprintf(&buf, "Architectures: %s\n", strings.Join(definition.Architectures, " "))
	fmt.Fprintf(&buf, "Components: %s\n", strings.Join(definition.Components, " "))
	checksums := []struct {
		name string
		sum  func(types.IndexFile) string
	}{
		{name: "MD5Sum", sum: func(f types.IndexFile) string { return f.MD5Sum }},
		{name: "SHA1", sum: func(f types.IndexFile) string { return f.SHA1 }},
		{name: "SHA256", sum: func(f types.IndexFile) string { return f.SHA256 }},
	}
	for _, checksum := range checksums {
		fmt.Fprintf(&buf, "%s:\n", checksum.name)
		for _, file := range files {
			fmt.Fprintf(&buf, " %s %16d %s\n", checksum.sum(file), file.Size, file.Path)
		}
	}
	return buf.Bytes()
}

func indexFileFor(rel string, data []byte) types.IndexFile {
	md5Sum := md5.Sum(data)
	sha1Sum := sha1.Sum(data)
	sha256Sum := sha256.Sum256(data)
	return types.IndexFile{
		Path:   rel,
		Size:   int64(len(data)),
		MD5Sum: hex.EncodeToString(md5Sum[:]),
		SHA1:   hex.EncodeToString(sha1Sum[:]),
		SHA256: hex.EncodeToString(sha256Sum[:]),
	}
}

func (b DebianArchiveBuilder) parallelism() int {
	if b.Parallelism <= 0 {
		return defaultBuilderParallelism
	}
	return b.Parallelism
}

func (b DebianArchiveBuilder) now() time.Time {
	if b.Clock == nil {
		return time.Now()
	}
	return b.Clock()
}

type writeCounter struct {
	written int64
}

func (w *writeCounter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	return len(p), nil
}

var _ ports.ArchiveBuilderPort = DebianArchiveBuilder{}

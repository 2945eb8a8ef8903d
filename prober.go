package extbuild

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultProbeSource is the minimal program compiled when a probe does not
// supply its own source.
const DefaultProbeSource = "int add(int a, int b) { return a + b; }\n"

// flagList is an insertion-ordered set of flags.
type flagList struct {
	order []string
	set   map[string]struct{}
}

func newFlagList(groups ...[]string) *flagList {
	l := &flagList{set: make(map[string]struct{})}
	for _, group := range groups {
		l.add(group...)
	}
	return l
}

// add inserts the flags not yet present and returns them.
func (l *flagList) add(flags ...string) []string {
	var added []string
	for _, flag := range flags {
		if _, ok := l.set[flag]; ok {
			continue
		}
		l.set[flag] = struct{}{}
		l.order = append(l.order, flag)
		added = append(added, flag)
	}
	return added
}

func (l *flagList) containsAll(flags []string) bool {
	for _, flag := range flags {
		if _, ok := l.set[flag]; !ok {
			return false
		}
	}
	return true
}

// FlagProber decides, for one language, which compiler and linker flags the
// toolchain accepts, and remembers the accepted ones.
//
// System flags (from the Environment) are known up front and never tested
// or duplicated. Accepted flags are kept in acceptance order and also become
// known, so probing the same flags again is free.
//
// A FlagProber is not safe for concurrent use; probes run one at a time.
type FlagProber struct {
	lang       Language
	toolchain  Toolchain
	scratchDir string
	logger     *zap.Logger

	systemCompile []string
	systemLink    []string

	knownCompile *flagList
	knownLink    *flagList

	compileFlags []string
	linkFlags    []string
}

// NewFlagProber creates a prober for lang that writes probe artifacts into
// scratchDir. systemCompile and systemLink are the externally supplied
// defaults that apply when compiling and linking lang.
func NewFlagProber(lang Language, toolchain Toolchain, scratchDir string, systemCompile, systemLink []string, logger *zap.Logger) *FlagProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	knownCompile := newFlagList(systemCompile)
	knownLink := newFlagList(systemLink)
	return &FlagProber{
		lang:          lang,
		toolchain:     toolchain,
		scratchDir:    scratchDir,
		logger:        logger.With(zap.String("lang", lang.String())),
		systemCompile: append([]string{}, knownCompile.order...),
		systemLink:    append([]string{}, knownLink.order...),
		knownCompile:  knownCompile,
		knownLink:     knownLink,
	}
}

// Language returns the prober's language.
func (p *FlagProber) Language() Language {
	return p.lang
}

// CompileFlags returns a copy of the accepted compile flags.
func (p *FlagProber) CompileFlags() []string {
	return append([]string{}, p.compileFlags...)
}

// LinkFlags returns a copy of the accepted link flags.
func (p *FlagProber) LinkFlags() []string {
	return append([]string{}, p.linkFlags...)
}

// Probe reports whether copts and ldflags can be used together.
//
// If every flag is already known the answer is yes without running the
// toolchain. Otherwise source (DefaultProbeSource when empty) is written to
// a fresh file in the scratch directory and compiled with exactly copts;
// when ldflags is non-empty the object is also linked into a shared library
// with exactly ldflags.
//
// A compiler or linker rejection returns false with a nil error and leaves
// the prober unchanged. On success the unknown flags are appended to the
// accepted lists in the order given. Any other failure is returned.
func (p *FlagProber) Probe(ctx context.Context, copts, ldflags []string, source string) (bool, error) {
	if p.knownCompile.containsAll(copts) && p.knownLink.containsAll(ldflags) {
		p.logger.Debug("flags already known",
			zap.Strings("copts", copts),
			zap.Strings("ldflags", ldflags))
		return true, nil
	}

	if source == "" {
		source = DefaultProbeSource
	}

	supported, err := p.tryBuild(ctx, copts, ldflags, source)
	if err != nil {
		return false, err
	}

	p.logger.Info("checking flags",
		zap.Strings("copts", copts),
		zap.Strings("ldflags", ldflags),
		zap.Bool("supported", supported))

	if supported {
		p.commit(copts, ldflags)
	}
	return supported, nil
}

// AddIfSupported probes copts and ldflags against the default probe source.
func (p *FlagProber) AddIfSupported(ctx context.Context, copts, ldflags []string) (bool, error) {
	return p.Probe(ctx, copts, ldflags, "")
}

// Add accepts flags without probing, for flags every toolchain of the family
// is known to take. Known flags are still not duplicated.
func (p *FlagProber) Add(copts, ldflags []string) {
	p.commit(copts, ldflags)
}

func (p *FlagProber) commit(copts, ldflags []string) {
	p.compileFlags = append(p.compileFlags, p.knownCompile.add(copts...)...)
	p.linkFlags = append(p.linkFlags, p.knownLink.add(ldflags...)...)
}

// tryBuild compiles, and optionally links, the probe source. Toolchain
// rejections become false; everything else is an error.
func (p *FlagProber) tryBuild(ctx context.Context, copts, ldflags []string, source string) (bool, error) {
	sourcePath, err := p.writeSource(source)
	if err != nil {
		return false, err
	}

	objects, err := p.toolchain.Compile(ctx, []string{sourcePath}, p.scratchDir, copts)
	if err != nil {
		if errors.Is(err, ErrCompile) {
			p.logger.Debug("probe compile rejected", zap.Error(err))
			return false, nil
		}
		return false, errors.Wrap(err, "compiling probe source")
	}

	if len(ldflags) == 0 {
		return true, nil
	}

	library := strings.TrimSuffix(sourcePath, p.lang.SourceExtension()) + ".so"
	if err := p.toolchain.LinkSharedLibrary(ctx, objects, library, ldflags); err != nil {
		if errors.Is(err, ErrLink) {
			p.logger.Debug("probe link rejected", zap.Error(err))
			return false, nil
		}
		return false, errors.Wrap(err, "linking probe library")
	}

	return true, nil
}

func (p *FlagProber) writeSource(source string) (string, error) {
	f, err := os.CreateTemp(p.scratchDir, "probe-*"+p.lang.SourceExtension())
	if err != nil {
		return "", errors.Wrap(err, "creating probe source")
	}

	_, writeErr := f.WriteString(source)
	closeErr := f.Close()
	if writeErr != nil {
		return "", errors.Wrapf(writeErr, "writing probe source %s", f.Name())
	}
	if closeErr != nil {
		return "", errors.Wrapf(closeErr, "closing probe source %s", f.Name())
	}

	return f.Name(), nil
}

// appliesTo reports whether the prober's flags belong on ext: same language,
// or a C++ extension receiving C flags.
func (p *FlagProber) appliesTo(ext *Extension) bool {
	lang := ext.InferLanguage()
	return lang == p.lang || (lang == LangCXX && p.lang == LangC)
}

// Apply merges the prober's flags into ext and reports whether it applied.
// See ApplyFlags for the merge order.
func (p *FlagProber) Apply(ext *Extension) bool {
	return ApplyFlags(ext, p) > 0
}

// ApplyFlags merges the flags of every prober that applies to ext into its
// compile and link arguments and returns how many probers applied.
//
// The merged list is: system flags of each applicable prober, then accepted
// flags of each applicable prober, in prober order and without duplicates,
// followed by the extension's original arguments. Flags the extension
// already lists are not added again, so an author's "-O3" still comes after
// an accepted "-O2" and wins.
func ApplyFlags(ext *Extension, probers ...*FlagProber) int {
	var (
		applied       int
		systemCompile []string
		systemLink    []string
		acceptCompile []string
		acceptLink    []string
	)

	for _, p := range probers {
		if !p.appliesTo(ext) {
			continue
		}
		applied++
		systemCompile = append(systemCompile, p.systemCompile...)
		systemLink = append(systemLink, p.systemLink...)
		acceptCompile = append(acceptCompile, p.compileFlags...)
		acceptLink = append(acceptLink, p.linkFlags...)
	}

	if applied == 0 {
		return 0
	}

	ext.CompileArgs = mergeFlags(append(systemCompile, acceptCompile...), ext.CompileArgs)
	ext.LinkArgs = mergeFlags(append(systemLink, acceptLink...), ext.LinkArgs)
	return applied
}

package spec

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"mercator-hq/readbreak/pkg/expr"
	"mercator-hq/readbreak/pkg/fastq"
	"mercator-hq/readbreak/pkg/match"
)

// LoadOptions configures LoadGlobals.
type LoadOptions struct {
	// BaseDir resolves relative whitelist paths. Defaults to the directory
	// of Spec.Source.
	BaseDir string
	// Cache compiles pattern templates. Optional.
	Cache *expr.Cache
	// Logger receives load progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// LoadGlobals reads every whitelist file (plain or gzip-compressed) and
// compiles every regex pattern declared by s. Pattern fields may be
// templates over params. All failures are collected into an *ErrorList.
func LoadGlobals(s *Spec, opts LoadOptions) (*Globals, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	baseDir := opts.BaseDir
	if baseDir == "" && s.Source != "" {
		baseDir = filepath.Dir(s.Source)
	}

	errs := &ErrorList{}
	g := &Globals{
		Whitelists: make(map[string]match.Whitelist, len(s.Globals.Whitelists)),
		Patterns:   make(map[string]*match.Pattern, len(s.Globals.Patterns)),
		Values:     make(expr.Vars, len(s.Globals.Values)),
	}

	for name, raw := range s.Globals.Values {
		if str, ok := raw.(string); ok && expr.IsTemplate(str) {
			errs.Add(&Error{Type: ErrorTypeSemantic, Message: fmt.Sprintf("global %q cannot be a template; declare it under params", name)})
			continue
		}
		val, err := expr.FromAny(raw)
		if err != nil {
			errs.Add(&Error{Type: ErrorTypeStructural, Message: fmt.Sprintf("global %q: %v", name, err)})
			continue
		}
		g.Values[name] = val
	}

	for _, name := range sortedNames(s.Globals.Whitelists) {
		path := s.Globals.Whitelists[name]
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		wl, err := loadWhitelist(path)
		if err != nil {
			errs.Add(&Error{
				Type:     ErrorTypeIO,
				Message:  fmt.Sprintf("whitelist %q: %v", name, err),
				Location: Location{File: path},
			})
			continue
		}
		g.Whitelists[name] = wl
		logger.Info("loaded whitelist",
			"component", "spec",
			"whitelist", name,
			"path", path,
			"sequences", wl.Len())
	}

	if len(s.Globals.Patterns) > 0 {
		params, err := expr.ResolveParams(s.Params, g.Values, opts.Cache)
		if err != nil {
			errs.Add(&Error{Type: ErrorTypeSemantic, Message: fmt.Sprintf("resolving params: %v", err)})
			return nil, errs
		}
		scope := expr.Scope{Params: params, Globals: g.Values}
		for _, name := range sortedNames(s.Globals.Patterns) {
			decl := s.Globals.Patterns[name]
			p, err := compileDecl(name, decl, scope, opts.Cache)
			if err != nil {
				errs.Add(&Error{
					Type:     ErrorTypeSemantic,
					Message:  err.Error(),
					Location: Location{File: s.Source, Line: decl.Line},
				})
				continue
			}
			g.Patterns[name] = p
			logger.Debug("compiled pattern",
				"component", "spec",
				"pattern", name,
				"regex", p.String())
		}
	}

	if errs.HasErrors() {
		return nil, errs
	}
	return g, nil
}

func loadWhitelist(path string) (match.Whitelist, error) {
	rc, err := fastq.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return match.LoadWhitelist(rc)
}

func compileDecl(name string, decl PatternDecl, scope expr.Scope, cache *expr.Cache) (*match.Pattern, error) {
	render := func(raw any) (expr.Value, error) {
		if str, ok := raw.(string); ok && expr.IsTemplate(str) {
			var (
				t   *expr.Template
				err error
			)
			if cache != nil {
				t, err = cache.Compile(str)
			} else {
				t, err = expr.Compile(str)
			}
			if err != nil {
				return expr.Value{}, err
			}
			return t.Eval(scope)
		}
		return expr.FromAny(raw)
	}

	var ps match.PatternSpec
	if decl.Type != nil {
		v, err := render(decl.Type)
		if err != nil {
			return nil, fmt.Errorf("pattern %q type: %w", name, err)
		}
		ps.Type = v.String()
	}
	v, err := render(decl.Sequence)
	if err != nil {
		return nil, fmt.Errorf("pattern %q sequence: %w", name, err)
	}
	ps.Sequence = v.String()
	if decl.MinTail != nil {
		v, err := render(decl.MinTail)
		if err != nil {
			return nil, fmt.Errorf("pattern %q min_tail: %w", name, err)
		}
		n, ok := v.AsInt()
		if !ok {
			return nil, fmt.Errorf("pattern %q: min_tail must be an integer, got %s", name, v.Kind())
		}
		ps.MinTail = int(n)
	}
	return match.CompilePattern(name, ps)
}

// WhitelistNames returns the declared whitelist names, sorted.
func (g *Globals) WhitelistNames() []string { return sortedNames(g.Whitelists) }

// PatternNames returns the compiled pattern names, sorted.
func (g *Globals) PatternNames() []string { return sortedNames(g.Patterns) }

package key

import (
	"fmt"
	"sort"
)

// IDExtractor pulls the entity identity out of a structured argument, e.g.
// a registered id_arg of the form (name, extractor).
type IDExtractor func(arg any) (string, error)

// ArgAdapter converts one named argument into its canonical string form.
// Adapters are also used to additionally surface an id_arg's source value
// into Args when the same parameter name is both the id source and an
// adapted argument.
type ArgAdapter func(arg any) (string, error)

// Descriptor is attached at registration time and drives key construction
// for every call of the wrapped function.
type Descriptor struct {
	KeyType string
	UseCase string

	// IDParam names the argument that supplies the entity id.
	IDParam string
	// IDExtractor, when set, extracts the id from the named argument
	// instead of using its default stringification.
	IDExtractor IDExtractor

	ArgAdapters map[string]ArgAdapter
	IgnoreArgs  []string

	TrackForInvalidation bool
	DefaultConfig        *Config
}

// BuildError reports a key-construction failure: a missing argument or a
// failing adapter/extractor. Callers bypass to the underlying function and
// count disabled{key_error} on this error.
type BuildError struct {
	Descriptor string
	Cause      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("gcache: key build failed for %s: %v", e.Descriptor, e.Cause)
}

func (e *BuildError) Unwrap() error { return e.Cause }

func ignored(name string, ignore []string) bool {
	for _, n := range ignore {
		if n == name {
			return true
		}
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Build assembles a Key from a named-argument snapshot of a call. args maps
// parameter name to the argument value as passed by the caller; it is the
// caller-supplied equivalent of binding positional/keyword arguments
// against the wrapped function's signature.
func (d *Descriptor) Build(args map[string]any) (Key, error) {
	if d.IDParam == "" {
		return Key{}, &BuildError{Descriptor: d.KeyType, Cause: fmt.Errorf("descriptor has no id_arg configured")}
	}

	idSource, ok := args[d.IDParam]
	if !ok {
		return Key{}, &BuildError{Descriptor: d.KeyType, Cause: fmt.Errorf("missing argument %q for id_arg", d.IDParam)}
	}

	var id string
	if d.IDExtractor != nil {
		extracted, err := d.IDExtractor(idSource)
		if err != nil {
			return Key{}, &BuildError{Descriptor: d.KeyType, Cause: fmt.Errorf("id extractor for %q: %w", d.IDParam, err)}
		}
		id = extracted
	} else {
		id = stringify(idSource)
	}

	out := make(map[string]string, len(args))
	for name, v := range args {
		if ignored(name, d.IgnoreArgs) {
			continue
		}
		// The id_arg parameter is not otherwise surfaced into Args unless
		// it also has an adapter registered for it.
		if name == d.IDParam {
			if _, hasAdapter := d.ArgAdapters[name]; !hasAdapter {
				continue
			}
		}

		if adapt, hasAdapter := d.ArgAdapters[name]; hasAdapter {
			adapted, err := adapt(v)
			if err != nil {
				return Key{}, &BuildError{Descriptor: d.KeyType, Cause: fmt.Errorf("arg adapter for %q: %w", name, err)}
			}
			out[name] = adapted
			continue
		}

		out[name] = stringify(v)
	}

	return Key{
		KeyType: d.KeyType,
		ID:      id,
		Args:    out,
		UseCase: d.UseCase,
	}, nil
}

// SortedArgNames is a debugging helper returning the canonical argument
// ordering of a built key.
func SortedArgNames(k Key) []string {
	names := make([]string, 0, len(k.Args))
	for n := range k.Args {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

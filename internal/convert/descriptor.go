package convert

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// inputPlaceholder marks where the spooled file path is substituted into a
// descriptor's argument template.
const inputPlaceholder = "{input}"

// Predicate identifies a recoverable failure condition for one converter.
// Within a predicate the listed checks are ANDed; an empty list matches
// anything. A converter's predicates are ORed together.
type Predicate struct {
	ExitCodes      []int    `yaml:"exitCodes"`
	StderrContains []string `yaml:"stderrContains"`
}

// Matches reports whether the failed attempt satisfies this predicate.
// Timeouts are never recoverable: a converter that ran out of wall clock
// is not retried on the next converter in the chain.
func (p Predicate) Matches(f *AttemptFailure) bool {
	if f == nil || f.TimedOut {
		return false
	}
	if len(p.ExitCodes) > 0 {
		found := false
		for _, code := range p.ExitCodes {
			if f.ExitCode == code {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(p.StderrContains) > 0 {
		stderr := strings.ToLower(f.Stderr)
		found := false
		for _, needle := range p.StderrContains {
			if strings.Contains(stderr, strings.ToLower(needle)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Descriptor is an invocation specification for one external converter.
type Descriptor struct {
	Name        string      `yaml:"name"`
	Command     string      `yaml:"command"`
	Args        []string    `yaml:"args"`
	Recoverable []Predicate `yaml:"recoverable"`
}

// Argv builds the full argument vector for the given input path. The
// command is exec'd directly, never through a shell.
func (d Descriptor) Argv(inputPath string) []string {
	argv := make([]string, 0, len(d.Args)+1)
	argv = append(argv, d.Command)
	for _, arg := range d.Args {
		argv = append(argv, strings.ReplaceAll(arg, inputPlaceholder, inputPath))
	}
	return argv
}

// IsRecoverable reports whether the failure matches any of the
// descriptor's recoverable-failure predicates.
func (d Descriptor) IsRecoverable(f *AttemptFailure) bool {
	for _, p := range d.Recoverable {
		if p.Matches(f) {
			return true
		}
	}
	return false
}

// Converter names used by the default routing table.
const (
	NamePandoc     = "pandoc"
	NameMarkItDown = "markitdown"
	NameAntiword   = "antiword"
	NameCalamine   = "calamine"
)

// DefaultDescriptors builds the built-in converter set. Pandoc's GHC
// runtime heap is capped so a table-heavy document degrades into a
// recoverable heap-exhaustion failure instead of taking the host down.
func DefaultDescriptors(pandocMaxHeap, pandocInitialHeap string) map[string]Descriptor {
	pandocArgs := []string{"+RTS"}
	if pandocMaxHeap != "" {
		pandocArgs = append(pandocArgs, "-M"+pandocMaxHeap)
	}
	if pandocInitialHeap != "" {
		pandocArgs = append(pandocArgs, "-H"+pandocInitialHeap)
	}
	pandocArgs = append(pandocArgs, "-RTS", inputPlaceholder, "-t", "markdown", "--wrap=none")

	return map[string]Descriptor{
		NamePandoc: {
			Name:    NamePandoc,
			Command: "pandoc",
			Args:    pandocArgs,
			Recoverable: []Predicate{
				// GHC aborts with 251 when the -M cap is hit.
				{ExitCodes: []int{251}},
				{StderrContains: []string{"heap exhausted", "out of memory"}},
			},
		},
		NameMarkItDown: {
			Name:    NameMarkItDown,
			Command: "markitdown",
			Args:    []string{inputPlaceholder},
		},
		NameAntiword: {
			Name:    NameAntiword,
			Command: "antiword",
			Args:    []string{inputPlaceholder},
			// antiword only handles a subset of .doc; any parse failure
			// should fall through to the next converter in the chain.
			Recoverable: []Predicate{{}},
		},
		NameCalamine: {
			Name:    NameCalamine,
			Command: "calamine",
			Args:    []string{inputPlaceholder},
			Recoverable: []Predicate{
				{StderrContains: []string{"unsupported", "invalid workbook"}},
			},
		},
	}
}

// descriptorFile is the YAML shape of a CONVERTERS_CONFIG override file.
type descriptorFile struct {
	Converters map[string]Descriptor `yaml:"converters"`
}

// LoadDescriptors merges descriptor overrides from a YAML file into the
// defaults. Only fields present in the file replace their default; unknown
// converter names are added as-is. An empty path returns the defaults
// unchanged.
func LoadDescriptors(path string, defaults map[string]Descriptor) (map[string]Descriptor, error) {
	merged := make(map[string]Descriptor, len(defaults))
	for name, d := range defaults {
		merged[name] = d
	}
	if path == "" {
		return merged, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading converters config: %w", err)
	}

	var file descriptorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing converters config: %w", err)
	}

	for name, override := range file.Converters {
		base, ok := merged[name]
		if !ok {
			override.Name = name
			merged[name] = override
			continue
		}
		if override.Command != "" {
			base.Command = override.Command
		}
		if len(override.Args) > 0 {
			base.Args = override.Args
		}
		if len(override.Recoverable) > 0 {
			base.Recoverable = override.Recoverable
		}
		merged[name] = base
	}

	return merged, nil
}

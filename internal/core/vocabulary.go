package core

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// TypeKeyword maps a keyword found in a type value to its display value.
type TypeKeyword struct {
	Keyword string `yaml:"keyword"`
	Value   string `yaml:"value"`
}

// VocabularyFile is the on-disk form of the header vocabulary.
type VocabularyFile struct {
	Version      int                         `yaml:"version"`
	Fields       map[CanonicalField][]string `yaml:"fields"`
	TypeKeywords []TypeKeyword               `yaml:"type_keywords"`
}

// Vocabulary is a compiled VocabularyFile: a lookup from normalized header
// spelling to canonical field, and the ordered type keywords. It is
// immutable once built and safe for concurrent use.
type Vocabulary struct {
	version  int
	synonyms map[string]CanonicalField
	display  map[CanonicalField]string
	keywords []TypeKeyword
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultVocabularyYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in vocabulary: %v", err))
	}
	return v
}

// LoadVocabulary reads a vocabulary file. An empty path yields the
// built-in vocabulary.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	v, err := ParseVocabulary(data)
	if err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// ParseVocabulary compiles YAML vocabulary data, rejecting unknown fields
// and spellings claimed by two fields.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var file VocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	return compileVocabulary(file)
}

func compileVocabulary(file VocabularyFile) (*Vocabulary, error) {
	v := &Vocabulary{
		version:  file.Version,
		synonyms: make(map[string]CanonicalField),
		display:  make(map[CanonicalField]string),
	}

	var errs []string
	claim := func(spelling string, f CanonicalField) {
		key := NormalizeHeader(spelling)
		if key == "" {
			return
		}
		if prev, ok := v.synonyms[key]; ok && prev != f {
			errs = append(errs, fmt.Sprintf("%q is claimed by both %s and %s", spelling, prev, f))
			return
		}
		v.synonyms[key] = f
	}

	// Claim canonical names first, in a stable order.
	names := make([]string, 0, len(fieldRules))
	for f := range fieldRules {
		names = append(names, string(f))
	}
	sort.Strings(names)
	for _, n := range names {
		claim(n, CanonicalField(n))
	}

	fields := make([]string, 0, len(file.Fields))
	for f := range file.Fields {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	for _, name := range fields {
		f := CanonicalField(name)
		if !IsCanonical(f) {
			errs = append(errs, fmt.Sprintf("unknown field %q", name))
			continue
		}
		for _, s := range file.Fields[f] {
			claim(s, f)
		}
		if spellings := file.Fields[f]; len(spellings) > 0 {
			v.display[f] = strings.TrimSpace(spellings[0])
		}
	}

	for _, k := range file.TypeKeywords {
		kw := foldValue(k.Keyword)
		if kw == "" || strings.TrimSpace(k.Value) == "" {
			errs = append(errs, fmt.Sprintf("type keyword %q needs both keyword and value", k.Keyword))
			continue
		}
		v.keywords = append(v.keywords, TypeKeyword{Keyword: kw, Value: strings.TrimSpace(k.Value)})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid vocabulary:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return v, nil
}

// Version is the version declared by the vocabulary file.
func (v *Vocabulary) Version() int { return v.version }

// Spelling is the header a template uses for f: the first spelling the
// vocabulary lists for it, or the field name.
func (v *Vocabulary) Spelling(f CanonicalField) string {
	if s, ok := v.display[f]; ok && s != "" {
		return s
	}
	return string(f)
}

// Lookup returns the canonical field for a raw header.
func (v *Vocabulary) Lookup(header string) (CanonicalField, bool) {
	f, ok := v.synonyms[NormalizeHeader(header)]
	return f, ok
}

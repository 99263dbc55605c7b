package scanning

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"
)

//go:embed policy_terms.toml
var defaultTermsFile []byte

// Terms holds the heuristic word lists used by the confidence policy
type Terms struct {
	MinNameLength   int      `toml:"min_name_length"`
	HedgeMarkers    []string `toml:"hedge_markers"`
	GenericTerms    []string `toml:"generic_terms"`
	Articles        []string `toml:"articles"`
	VagueQualifiers []string `toml:"vague_qualifiers"`
}

// DefaultTerms returns the built-in term lists
func DefaultTerms() Terms {
	var terms Terms
	if err := toml.Unmarshal(defaultTermsFile, &terms); err != nil {
		panic(fmt.Sprintf("decoding built-in policy terms: %v", err))
	}
	return terms
}

// LoadTerms reads a TOML file on top of the built-in terms.
// Keys missing from the file keep their default value.
func LoadTerms(path string) (Terms, error) {
	terms := DefaultTerms()
	data, err := os.ReadFile(path)
	if err != nil {
		return Terms{}, fmt.Errorf("reading policy terms: %w", err)
	}
	if err := toml.Unmarshal(data, &terms); err != nil {
		return Terms{}, fmt.Errorf("decoding policy terms: %w", err)
	}
	return terms, nil
}

// Policy decides whether an identification must be confirmed by the user.
// It is immutable and safe for concurrent use.
type Policy struct {
	minNameLength int
	hedge         *regexp.Regexp
	generic       *regexp.Regexp
	vagueArticle  *regexp.Regexp
}

// DefaultPolicy returns a Policy built from DefaultTerms
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultTerms())
	if err != nil {
		panic(fmt.Sprintf("building default policy: %v", err))
	}
	return p
}

// NewPolicy compiles the term lists into matchers
func NewPolicy(terms Terms) (*Policy, error) {
	if terms.MinNameLength < 0 {
		return nil, fmt.Errorf("min_name_length must not be negative")
	}

	// hedges match anywhere, generic terms only as whole words
	hedge, err := phraseMatcher(`(?:%s)`, terms.HedgeMarkers)
	if err != nil {
		return nil, fmt.Errorf("hedge_markers: %w", err)
	}
	generic, err := phraseMatcher(`\b(?:%s)\b`, terms.GenericTerms)
	if err != nil {
		return nil, fmt.Errorf("generic_terms: %w", err)
	}

	var vagueArticle *regexp.Regexp
	if len(terms.Articles) > 0 && len(terms.VagueQualifiers) > 0 {
		articles, err := alternation(terms.Articles)
		if err != nil {
			return nil, fmt.Errorf("articles: %w", err)
		}
		qualifiers, err := alternation(terms.VagueQualifiers)
		if err != nil {
			return nil, fmt.Errorf("vague_qualifiers: %w", err)
		}
		vagueArticle = regexp.MustCompile(`(?i)^(?:` + articles + `)\s+(?:` + qualifiers + `)\b`)
	}

	return &Policy{
		minNameLength: terms.MinNameLength,
		hedge:         hedge,
		generic:       generic,
		vagueArticle:  vagueArticle,
	}, nil
}

// ShouldEscalate reports whether result must be confirmed with a manual
// name before it can be saved.
func (p *Policy) ShouldEscalate(result *IdentificationResult, manualNameSupplied bool) bool {
	if manualNameSupplied {
		return false
	}
	switch result.Confidence {
	case ConfidenceLow:
		return true
	case ConfidenceMedium:
		return p.IsHedged(result.Reasoning) || p.IsGenericName(result.IdentifiedName)
	default:
		return false
	}
}

// IsHedged reports whether the reasoning contains a hedge marker
func (p *Policy) IsHedged(reasoning string) bool {
	if p.hedge == nil {
		return false
	}
	return p.hedge.MatchString(normalizeQuotes(reasoning))
}

// IsGenericName reports whether name is too vague to identify an item
func (p *Policy) IsGenericName(name string) bool {
	name = normalizeQuotes(strings.TrimSpace(name))
	if utf8.RuneCountInString(name) < p.minNameLength {
		return true
	}
	if p.generic != nil && p.generic.MatchString(name) {
		return true
	}
	return p.vagueArticle != nil && p.vagueArticle.MatchString(name)
}

func phraseMatcher(format string, phrases []string) (*regexp.Regexp, error) {
	if len(phrases) == 0 {
		return nil, nil
	}
	alt, err := alternation(phrases)
	if err != nil {
		return nil, err
	}
	return regexp.Compile("(?i)" + fmt.Sprintf(format, alt))
}

// alternation quotes each phrase and lets any run of whitespace match its spaces
func alternation(phrases []string) (string, error) {
	quoted := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		words := strings.Fields(normalizeQuotes(phrase))
		if len(words) == 0 {
			return "", fmt.Errorf("blank entry")
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		quoted = append(quoted, strings.Join(words, `\s+`))
	}
	return strings.Join(quoted, "|"), nil
}

var quoteReplacer = strings.NewReplacer("’", "'", "‘", "'")

func normalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

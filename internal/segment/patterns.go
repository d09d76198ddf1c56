package segment

import (
	"regexp"
	"strings"
)

// upper covers the uppercase letters seen in Nordic and central-European
// author names in addition to ASCII.
const upper = `A-ZÅÄÖÜÉÑÇŞŽŠĐĆČŁÓŚŹŻÁØÍÚÈÆÔ`

// yearNum bounds plausible publication years to 1750-2030.
const yearNum = `(?:17[5-9]\d|18\d{2}|19\d{2}|20(?:[0-2]\d|30))`

// AuthorPatterns bundles the compiled author-detection regexes. Initials
// mode matches 'Smith, J. A.'; full-name mode additionally matches
// 'Smith, John A.'.
type AuthorPatterns struct {
	// Pattern matches a full author chain anchored at line start.
	Pattern *regexp.Regexp
	// StartLike is a looser matcher for a line that begins like an author.
	StartLike *regexp.Regexp
	// StartLikeMulti allows multi-part surnames with particles
	// ('de Rezende Barbosa, G. L.').
	StartLikeMulti *regexp.Regexp
	// InitialStart matches a single-letter initial at the start of a line.
	InitialStart *regexp.Regexp
	// EditorToken matches a bare editor marker: ed, eds, red.
	EditorToken *regexp.Regexp
	// FullNames reports whether full-first-name detection is active.
	FullNames bool
}

// BuildAuthorPatterns compiles the author pattern family. fullNames
// switches the active patterns to comma-separated full given names.
func BuildAuthorPatterns(fullNames bool) *AuthorPatterns {
	particles := `(?:von|van der|van|der|de la|de|di|av|af|del|dos|da|le|la|du|mac|mc|san|st|bin|ibn)`
	surnamePart := `(?:(?i:` + particles + `)\s+)?[` + upper + `][\p{L}'’.\-]+`
	surnameToken := surnamePart + `(?:(?: {1,3}|-)` + surnamePart + `){0,2}`
	authorSep := `(?:, {0,3}| {1,3})`

	// A single-letter initial, optionally dotted. Up to four initials with
	// dots, hyphens, or short space runs between them.
	initial := `[` + upper + `]\.?`
	initials := initial + `(?:(?: {1,3}|[.\-])` + initial + `){0,3}`

	ellipsis := `(?:\.{3}|\.\s*\.\s*\.)`
	etal := `(?i:et\s+al\.?)`
	connector := `(?: {0,3}, {0,3}& {0,3}| {0,3}, {0,3}(?i:and) {0,3}| {0,3}, {0,3}(?i:och) {0,3}| {0,3}, {0,3}| {0,3}; {0,3}| {0,3}& {0,3}| {0,3}(?i:and) {0,3}| {0,3}(?i:och) {0,3})`
	trailer := `(?:` + connector + `(?:` + ellipsis + `|` + etal + `|` + surnameToken + authorSep + initials + `))*`

	p := &AuthorPatterns{
		InitialStart: regexp.MustCompile(`^[` + upper + `]\.?(?:[\s.,;:()&/\-]|$)`),
		EditorToken:  regexp.MustCompile(`(?i)^(?:eds?|red)\.?$`),
		FullNames:    fullNames,
	}

	if fullNames {
		givenName := `[` + upper + `][a-zåäöüéñçşžšđćčłóśźżáøíúèæô]+`
		givenNameToken := givenName + `(?:(?:-| {1,3})` + givenName + `){0,3}`
		givenWithInitials := givenNameToken + `(?: {1,3}` + initials + `)?`
		p.Pattern = regexp.MustCompile(`^` + surnameToken + `,\s*` + givenWithInitials + trailer + `\b`)
		p.StartLike = regexp.MustCompile(`^` + surnameToken + `,\s*` + givenNameToken)
	} else {
		p.Pattern = regexp.MustCompile(`^` + surnameToken + authorSep + initials + trailer + `\b`)
		p.StartLike = regexp.MustCompile(`^` + surnameToken + authorSep + initials + `\b`)
	}
	p.StartLikeMulti = regexp.MustCompile(`^` + surnameToken + authorSep + initials)
	return p
}

// YearPatterns bundles the parenthesized-year regex family. Years are
// bounded to 1750-2030 and may carry a single-letter suffix ('1970a'),
// a textual or ISO date part, a bracketed secondary year, or a status
// token like '(in press)'.
type YearPatterns struct {
	Paren      *regexp.Regexp // (year) anywhere
	ParenEnd   *regexp.Regexp // (year) at end of line
	ParenStart *regexp.Regexp // (year) at start of line

	initialsParenYear     *regexp.Regexp
	initialsThenParenYear *regexp.Regexp
}

// BuildYearPatterns compiles the parenthesized-year family.
func BuildYearPatterns() *YearPatterns {
	yearSingle := yearNum + `[A-Za-z]?`
	months := `(?:(?i:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?|januari|februari|mars|april|maj|juni|juli|augusti|september|oktober|november|december))`
	datePart := `(?:\s*,?\s*` + months + `\s+\d{1,2}(?:st|nd|rd|th)?)?`
	fullDate := `\d{1,2}\s+` + months + `\s+` + yearNum
	status := `(?:(?i:forthcoming|in\s+press|submitted|unpublished|n\.?d\.?|no date|u\.?å\.?)(?:\s*(?:-\s*)?[A-Za-z])?)`
	isoDate := yearNum + `-(?:0[1-9]|1[0-2])(?:-(?:0[1-9]|[12]\d|3[01]))?`
	doubleBracketed := yearSingle + `\s*\[` + yearSingle + `\]`
	doubleSlash := yearSingle + `/` + yearSingle

	inner := `(?:` + doubleBracketed + `|` + doubleSlash + `|` + fullDate + `|` + yearSingle + datePart + `(?:\s*\[` + yearSingle + `\])?|` + isoDate + `)`
	full := `\((?:` + inner + `|` + status + `)\)`

	return &YearPatterns{
		Paren:      regexp.MustCompile(full),
		ParenEnd:   regexp.MustCompile(full + `\s*$`),
		ParenStart: regexp.MustCompile(`^` + full),

		initialsParenYear:     regexp.MustCompile(initialsRunPrefix + `\s*\(` + inner + `\)`),
		initialsThenParenYear: regexp.MustCompile(`(?s)` + initialsRunPrefix + `.{0,120}\(` + inner + `\)`),
	}
}

// bareYearRe matches standalone-ish year tokens, optionally bracketed,
// with an optional single-letter suffix. Digit-adjacency and hyphen
// adjacency are validated separately in FindBareYear because the regex
// engine has no lookaround.
var bareYearRe = regexp.MustCompile(`[(\[]?(?:` + yearNum + `-(?:0[1-9]|1[0-2])(?:-(?:0[1-9]|[12]\d|3[01]))?|` + yearNum + `)[A-Pa-p]?[)\]]?`)

var isoDateRe = regexp.MustCompile(`\b\d{4}-\d{2}(?:-\d{2})?\b`)

// isHyphenAt reports whether the byte at i is a dash. The normalizer
// folds all dash variants to ASCII '-' before segmentation runs.
func isHyphenAt(s string, i int) bool {
	return i >= 0 && i < len(s) && s[i] == '-'
}

// FindBareYear returns the span [start, end) of the first acceptable
// bare-year token in s, or (-1, -1). A match is rejected when a digit
// borders it (part of a longer number) or when a hyphen borders it,
// unless the match itself is an ISO date.
func FindBareYear(s string) (int, int) {
	for _, loc := range bareYearRe.FindAllStringIndex(s, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
			continue
		}
		if end < len(s) && s[end] >= '0' && s[end] <= '9' {
			continue
		}
		if isHyphenAt(s, start-1) || isHyphenAt(s, end) {
			if isoDateRe.MatchString(s[start:end]) {
				return start, end
			}
			continue
		}
		return start, end
	}
	return -1, -1
}

// YearFound reports whether s contains an acceptable bare-year token.
func YearFound(s string) bool {
	start, _ := FindBareYear(s)
	return start >= 0
}

// Government-document markers. These lines always begin a reference of
// their own: they are never joined into a previous record and never
// treated as numbered-list boundaries.
var (
	propStartRe = regexp.MustCompile(`(?i)^\s*(?:Prop\.|Proposition)\s*\(?(?:19\d{2}|20(?:[0-2]\d|30))/\d{2}:\d{1,3}\)?`)
	souStartRe  = regexp.MustCompile(`(?i)^\s*SOU[:\s]\s*\(?(?:19\d{2}|20(?:[0-2]\d|30)):\d{1,3}\)?`)
	sfsStartRe  = regexp.MustCompile(`(?i)^\s*SFS[:\s]\s*\(?(?:19\d{2}|20(?:[0-2]\d|30)):\d{1,4}\)?`)
	dsStartRe   = regexp.MustCompile(`(?i)^\s*Ds[:\s]\s*\(?(?:19\d{2}|20(?:[0-2]\d|30)):\d{1,3}\)?`)
)

// StartsWithGovMarker reports whether s begins with a Swedish
// government-document marker: Prop. YYYY/NN:NNN, SOU YYYY:NNN,
// SFS YYYY:NNNN, or Ds YYYY:NNN.
func StartsWithGovMarker(s string) bool {
	if s == "" {
		return false
	}
	return propStartRe.MatchString(s) || souStartRe.MatchString(s) ||
		sfsStartRe.MatchString(s) || dsStartRe.MatchString(s)
}

var (
	initialsRunPrefix = `^\s*(?:[A-Z]\.? +){1,3}`
	whitespaceRe      = regexp.MustCompile(`\s`)
	digitRe           = regexp.MustCompile(`\d`)
	loose4DigitYearRe = regexp.MustCompile(`\b(?:17|18|19|20)\d{2}\b`)
	trailingPunctRe   = regexp.MustCompile(`^[\s.,:;\-—–&"'()\[\]]*$`)
	parenGroupRe      = regexp.MustCompile(`\(([^)]*)\)`)
	endInitialRe      = regexp.MustCompile(`\b[A-Z]\.?$`)
)

// StartsWithInitialsParenYear reports whether the line begins with 1-3
// spaced initials directly followed by a parenthesized year, e.g.
// "A. (2003) Title".
func (y *YearPatterns) StartsWithInitialsParenYear(s string) bool {
	return s != "" && y.initialsParenYear.MatchString(s)
}

// StartsWithInitialsThenParenYear is the relaxed variant: 1-3 leading
// initials with up to 120 characters of intervening author fragments
// before the parenthesized year.
func (y *YearPatterns) StartsWithInitialsThenParenYear(s string) bool {
	return s != "" && y.initialsThenParenYear.MatchString(s)
}

// LineEndsWithCommaOrInitial reports whether the line ends with a comma
// or a single-letter initial (with or without a trailing dot).
func LineEndsWithCommaOrInitial(s string) bool {
	t := strings.TrimRight(s, " \t")
	if t == "" {
		return false
	}
	if strings.HasSuffix(t, ",") {
		return true
	}
	return endInitialRe.MatchString(t)
}

// LineEndsWithConjunction reports whether the line literally ends with
// '&' (a continued author list).
func LineEndsWithConjunction(s string) bool {
	return strings.HasSuffix(strings.TrimRight(s, " \t"), "&")
}

// ShouldAttachCommaFragment decides whether a fragment that begins with
// a leading comma belongs to the previous author line. It attaches when
// the next physical line starts with an initial, or (in full-name mode)
// when the next line starts like an author.
func (p *AuthorPatterns) ShouldAttachCommaFragment(fragment, nextLine string) bool {
	if fragment == "" || !strings.HasPrefix(strings.TrimLeft(fragment, " \t"), ",") {
		return false
	}
	if nextLine == "" {
		return false
	}
	nl := strings.TrimLeft(nextLine, " \t")
	if p.InitialStart.MatchString(nl) {
		return true
	}
	return p.FullNames && p.StartLike.MatchString(nl)
}

// Package doiutil detects DOI identifiers in reference text, repairs the
// broken token forms PDF extraction produces, and relocates every DOI to
// the end of its record as a canonical https://doi.org/ URL.
package doiutil

import (
	"regexp"
	"strings"
)

// The identifier grammar: '10.' + registrant prefix + '/' + suffix.
// Suffix matching stops at whitespace and the closing punctuation that
// commonly trails a DOI in running text.
var (
	idRe           = regexp.MustCompile(`\b10\.\d{4,9}/[^\s)\],;]+`)
	httpURLRe      = regexp.MustCompile(`(?i)https?://(?:dx\.)?doi\.org/([^\s)\],;]+)`)
	bareURLRe      = regexp.MustCompile(`(?i)\b(?:dx\.doi\.org/|doi\.org/)([^\s)\],;]+)`)
	colonRe        = regexp.MustCompile(`(?i)\bdoi:\s*\[?\s*([^\s)\],;]+)(?:\s+([^\s)\],;]+))?\s*\]?`)
	brokenTwoTokRe = regexp.MustCompile(`\b(10\.\d{4,9}/[^\s)\],;]+)\s+([^\s)\],;]+)`)
	httpTailRe     = regexp.MustCompile(`(?i)https?://(?:dx\.)?doi\.org/([^\s)\],;]+)\s+([^\s)\],;]+)`)
	bareTailRe     = regexp.MustCompile(`(?i)\b(?:dx\.doi\.org/|doi\.org/)([^\s)\],;]+)\s+([^\s)\],;]+)`)
	splitRe        = regexp.MustCompile(`(?i)https?://(?:dx\.)?doi\.org/\S+|dx\.doi\.org/\S+|doi\.org/\S+|doi:\S+`)
	validIDRe      = regexp.MustCompile(`^10\.\d{2,9}/[^\s)\].,;]`)
	dupPrefixRe    = regexp.MustCompile(`(?i)(https?://(?:dx\.)?doi\.org/)(?:\s*https?://(?:dx\.)?doi\.org/)+`)
	wsRe           = regexp.MustCompile(`\s+`)
)

const trailPunct = ".,;()[]"

// replaceSubmatchFunc is ReplaceAllStringFunc with access to submatches.
func replaceSubmatchFunc(re *regexp.Regexp, s string, repl func(groups []string) string) string {
	var b strings.Builder
	last := 0
	for _, idx := range re.FindAllStringSubmatchIndex(s, -1) {
		groups := make([]string, len(idx)/2)
		for g := 0; g < len(idx)/2; g++ {
			if idx[2*g] >= 0 {
				groups[g] = s[idx[2*g]:idx[2*g+1]]
			}
		}
		b.WriteString(s[last:idx[0]])
		b.WriteString(repl(groups))
		last = idx[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

var collapseAfterOrgRe = regexp.MustCompile(`(?i)(https?://(?:dx\.)?doi\.org/)((?:\s*\S+){1,12})`)

// collapseAfterDOIOrg rejoins a DOI split into several tokens after the
// doi.org/ prefix, but backs off when the text after the first token
// looks like prose (a capitalized word, an initial, or a conjunction).
func collapseAfterDOIOrg(s string) string {
	capWordRe := regexp.MustCompile(`^[A-Z][a-z]+,?$`)
	initialRe := regexp.MustCompile(`^[A-Z]\.?$`)
	return replaceSubmatchFunc(collapseAfterOrgRe, s, func(g []string) string {
		prefix, rest := g[1], g[2]
		toks := strings.Fields(rest)
		if len(toks) == 0 {
			return prefix + rest
		}
		first := toks[0]
		if !strings.HasSuffix(first, ".") && !strings.HasSuffix(first, "-") && !strings.HasSuffix(first, "_") {
			return prefix + rest
		}
		if len(toks) > 1 {
			next := strings.Trim(toks[1], trailPunct)
			if capWordRe.MatchString(next) || initialRe.MatchString(next) || next == "&" || next == "and" {
				return prefix + rest
			}
		}
		collapsed := strings.TrimRight(wsRe.ReplaceAllString(rest, ""), trailPunct)
		return prefix + collapsed
	})
}

// ExtractIDs returns the validated DOI identifiers found in text,
// deduplicated in encounter order. Identifiers fully contained in a
// longer identifier are dropped.
func ExtractIDs(text string) []string {
	if text == "" {
		return nil
	}
	ref := dupPrefixRe.ReplaceAllString(text, "$1")
	ref = collapseAfterDOIOrg(ref)

	var ids []string
	for _, m := range httpURLRe.FindAllStringSubmatch(ref, -1) {
		ids = append(ids, strings.TrimRight(m[1], trailPunct))
	}
	for _, m := range colonRe.FindAllStringSubmatch(ref, -1) {
		part1, part2 := m[1], m[2]
		var candidate string
		if part2 != "" && endsWithSplitChar(part1) {
			candidate = strings.TrimRight(strings.ReplaceAll(part1+part2, " ", ""), trailPunct)
		} else {
			candidate = strings.TrimRight(part1, trailPunct)
		}
		if mm := httpURLRe.FindStringSubmatch(candidate); mm != nil {
			ids = append(ids, strings.TrimRight(mm[1], trailPunct))
		} else {
			ids = append(ids, candidate)
		}
	}
	for _, m := range idRe.FindAllString(ref, -1) {
		ids = append(ids, strings.TrimRight(m, trailPunct))
	}
	for _, m := range brokenTwoTokRe.FindAllStringSubmatch(ref, -1) {
		if !endsWithSplitChar(m[1]) {
			continue
		}
		ids = append(ids, strings.TrimRight(strings.ReplaceAll(m[1]+m[2], " ", ""), trailPunct))
	}

	seen := make(map[string]struct{})
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if strings.HasPrefix(id, "[") && strings.HasSuffix(id, "]") {
			id = strings.TrimSpace(id[1 : len(id)-1])
		}
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	var valid []string
	for _, id := range out {
		if validIDRe.MatchString(id) && !endsWithSplitChar(id) {
			valid = append(valid, id)
		}
	}

	var filtered []string
	for _, id := range valid {
		contained := false
		for _, other := range valid {
			if other != id && strings.Contains(other, id) {
				contained = true
				break
			}
		}
		if !contained {
			filtered = append(filtered, id)
		}
	}
	return filtered
}

func endsWithSplitChar(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "-") || strings.HasSuffix(s, "_")
}

var (
	repeatedColonRe = regexp.MustCompile(`(?i)(?:doi:\s*){2,}`)
	colonSpaceRe    = regexp.MustCompile(`(?i)\bdoi:\s+`)
	nestedURLRe     = regexp.MustCompile(`(?i)https?://(?:dx\.)?doi\.org/https?://`)
	spacePunctRe    = regexp.MustCompile(`\s+([.,;:])`)
)

// MoveToEnd removes every validated DOI occurrence from the record text
// and appends the canonical https://doi.org/<id> form at the end. Text
// without a validated DOI is returned unchanged.
func MoveToEnd(ref string) string {
	ref2 := repeatedColonRe.ReplaceAllString(ref, "doi:")
	ref2 = colonSpaceRe.ReplaceAllString(ref2, "doi:")

	text := NormalizeInFragment(ref2)
	text = FixBrokenTokens(text)

	frags := SplitURLsAndDOIs(text)
	frags = ConservativeReattach(frags)
	frags = AggressiveReattach(frags)
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, strings.TrimSpace(f))
	}
	text = strings.Join(parts, " ")

	ids := ExtractIDs(text)
	if len(ids) == 0 {
		return ref
	}
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	var spans [][2]int
	addSpan := func(start, end int, candidate string) {
		if _, ok := idSet[candidate]; ok {
			spans = append(spans, [2]int{start, end})
		}
	}
	for _, idx := range httpURLRe.FindAllStringSubmatchIndex(text, -1) {
		addSpan(idx[0], idx[1], strings.TrimRight(text[idx[2]:idx[3]], trailPunct))
	}
	for _, idx := range bareURLRe.FindAllStringSubmatchIndex(text, -1) {
		addSpan(idx[0], idx[1], strings.TrimRight(text[idx[2]:idx[3]], trailPunct))
	}
	for _, idx := range httpTailRe.FindAllStringSubmatchIndex(text, -1) {
		first, second := text[idx[2]:idx[3]], text[idx[4]:idx[5]]
		if !endsWithSplitChar(first) {
			continue
		}
		addSpan(idx[0], idx[1], strings.TrimRight(strings.ReplaceAll(first+second, " ", ""), trailPunct))
	}
	for _, idx := range bareTailRe.FindAllStringSubmatchIndex(text, -1) {
		first, second := text[idx[2]:idx[3]], text[idx[4]:idx[5]]
		if !endsWithSplitChar(first) {
			continue
		}
		addSpan(idx[0], idx[1], strings.TrimRight(strings.ReplaceAll(first+second, " ", ""), trailPunct))
	}
	for _, idx := range colonRe.FindAllStringSubmatchIndex(text, -1) {
		part1 := text[idx[2]:idx[3]]
		var candidate string
		if idx[4] >= 0 {
			if !endsWithSplitChar(part1) {
				continue
			}
			candidate = strings.TrimRight(strings.ReplaceAll(part1+text[idx[4]:idx[5]], " ", ""), trailPunct)
		} else {
			candidate = strings.TrimRight(part1, trailPunct)
		}
		addSpan(idx[0], idx[1], candidate)
	}
	for _, idx := range idRe.FindAllStringIndex(text, -1) {
		addSpan(idx[0], idx[1], strings.TrimRight(text[idx[0]:idx[1]], trailPunct))
	}
	for _, idx := range brokenTwoTokRe.FindAllStringSubmatchIndex(text, -1) {
		first, second := text[idx[2]:idx[3]], text[idx[4]:idx[5]]
		if !endsWithSplitChar(first) {
			continue
		}
		addSpan(idx[0], idx[1], strings.TrimRight(strings.ReplaceAll(first+second, " ", ""), trailPunct))
	}

	merged := mergeSpans(spans)
	newText := text
	for i := len(merged) - 1; i >= 0; i-- {
		newText = newText[:merged[i][0]] + " " + newText[merged[i][1]:]
	}

	newText = nestedURLRe.ReplaceAllString(newText, "https://")
	newText = strings.TrimSpace(wsRe.ReplaceAllString(newText, " "))
	newText = strings.TrimRight(newText, ".")
	newText = removeStrayPrefixes(newText)
	newText = cleanupDangling(newText)

	urls := make([]string, len(ids))
	for i, id := range ids {
		urls[i] = "https://doi.org/" + id
	}
	if newText == "" {
		return strings.Join(urls, " ")
	}
	return strings.TrimSpace(newText + ". " + strings.Join(urls, " "))
}

func mergeSpans(spans [][2]int) [][2]int {
	if len(spans) == 0 {
		return nil
	}
	// insertion sort by start; span lists are tiny
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j][0] < spans[j-1][0]; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	merged := [][2]int{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp[0] <= last[1] {
			if sp[1] > last[1] {
				last[1] = sp[1]
			}
		} else {
			merged = append(merged, sp)
		}
	}
	return merged
}

var (
	brokenTenURLRe   = regexp.MustCompile(`(?i)(https?://(?:dx\.)?doi\.org/)\s*1\s+0\.`)
	brokenTenColonRe = regexp.MustCompile(`(?i)(doi:\s*)1\s+0\.`)
	brokenTenBareRe  = regexp.MustCompile(`\b1\s+0\.(\d)`)
	bodyAfterURLRe   = regexp.MustCompile(`(?i)(https?://(?:dx\.)?doi\.org/)\s*(10\.\d{2,9}[^\s)\],;]{0,200})`)
	bodyAfterColonRe = regexp.MustCompile(`(?i)(doi:\s*)(10\.\d{2,9}[^\s)\],;]{0,200})`)
	bareBodyRe       = regexp.MustCompile(`\b10\.\d{2,9}[^\s)\],;]{0,200}`)
	braceUnderscRe   = regexp.MustCompile(`\{\s*\\?_+\s*\}`)
	slashGapRe       = regexp.MustCompile(`(10\.\d{2,9}/)\s+([A-Za-z0-9\-._/{}]+)`)
	doiWordRe        = regexp.MustCompile(`(?i)doi`)
)

// NormalizeInFragment collapses broken DOI tokens inside a fragment so
// span detection sees contiguous identifiers: '1 0.' becomes '10.',
// internal whitespace in a DOI body is stripped, and bare identifiers
// get a doi.org/ prefix when no URL context is already present.
func NormalizeInFragment(ref string) string {
	s := ref
	if doiWordRe.MatchString(s) {
		s = brokenTenURLRe.ReplaceAllString(s, "${1}10.")
		s = brokenTenColonRe.ReplaceAllString(s, "${1}10.")
		s = brokenTenBareRe.ReplaceAllString(s, "10.$1")
	}
	stripWS := func(g []string) string {
		return g[1] + wsRe.ReplaceAllString(g[2], "")
	}
	s = replaceSubmatchFunc(bodyAfterURLRe, s, stripWS)
	s = replaceSubmatchFunc(bodyAfterColonRe, s, stripWS)
	s = bareBodyRe.ReplaceAllStringFunc(s, func(m string) string {
		return wsRe.ReplaceAllString(m, "")
	})

	// Prefix bare identifiers with doi.org/ unless nearby context already
	// marks them as part of a URL or doi: form.
	var b strings.Builder
	last := 0
	for _, idx := range bareBodyRe.FindAllStringIndex(s, -1) {
		b.WriteString(s[last:idx[0]])
		pre := strings.ToLower(s[max(0, idx[0]-30):idx[0]])
		token := s[idx[0]:idx[1]]
		if strings.Contains(pre, "doi.org") || strings.Contains(pre, "dx.doi.org") ||
			strings.Contains(pre, "doi:") || strings.Contains(pre, "http://") ||
			strings.Contains(pre, "https://") {
			b.WriteString(token)
		} else {
			b.WriteString("doi.org/" + token)
		}
		last = idx[1]
	}
	b.WriteString(s[last:])
	s = b.String()

	s = braceUnderscRe.ReplaceAllString(s, "_")
	s = replaceSubmatchFunc(slashGapRe, s, func(g []string) string {
		return g[1] + wsRe.ReplaceAllString(g[2], "")
	})
	return s
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

var (
	fixMissingSlashRe  = regexp.MustCompile(`(?i)(https?://doi\.org)10\.`)
	fixSpacedSlashRe   = regexp.MustCompile(`(?i)(https?://doi\.org)\s+10\.`)
	fixSpacedOrgRe     = regexp.MustCompile(`(?i)https?://doi\.\s*org`)
	fixMissingSlash2Re = regexp.MustCompile(`(?i)(https?://doi\.org)10([^\d/.])`)
	fixTrailingTenRe   = regexp.MustCompile(`(?i)(https?://doi\.org)10$`)
)

// FixBrokenTokens repairs common DOI URL damage: a missing slash after
// doi.org, whitespace inside 'doi. org', and similar.
func FixBrokenTokens(ref string) string {
	s := fixMissingSlashRe.ReplaceAllString(ref, "${1}/10.")
	s = fixSpacedSlashRe.ReplaceAllString(s, "${1}/10.")
	s = fixSpacedOrgRe.ReplaceAllString(s, "https://doi.org")
	s = fixMissingSlash2Re.ReplaceAllString(s, "${1}/10$2")
	s = fixTrailingTenRe.ReplaceAllString(s, "${1}/10")
	return s
}

// canonicalGlueRe finds a capitalized word glued straight onto a
// canonical DOI. The identifier must end in a lowercase letter or digit
// before the capital, so DOIs that legitimately contain dots or mixed
// case are left alone.
var canonicalGlueRe = regexp.MustCompile(`(https?://doi\.org/\S*[a-z0-9])([A-Z][a-z])`)

// EnsureSpaceAfterCanonical inserts a missing separator when a canonical
// DOI URL runs directly into following text.
func EnsureSpaceAfterCanonical(ref string) string {
	return canonicalGlueRe.ReplaceAllString(ref, "$1 $2")
}

// SplitURLsAndDOIs splits a record into fragments at URL/DOI boundaries.
// Each URL stays attached to the text preceding it.
func SplitURLsAndDOIs(ref string) []string {
	loc := splitRe.FindStringIndex(ref)
	if loc == nil {
		return []string{ref}
	}
	before := strings.TrimSpace(ref[:loc[0]])
	url := strings.TrimSpace(ref[loc[0]:loc[1]])
	after := strings.TrimSpace(ref[loc[1]:])

	var result []string
	if before != "" {
		result = append(result, strings.TrimSpace(before+" "+url))
	} else {
		result = append(result, url)
	}
	if after != "" {
		result = append(result, SplitURLsAndDOIs(after)...)
	}
	return result
}

var (
	prefixEndRe   = regexp.MustCompile(`(?i)(?:dx\.doi\.org/?|doi\.org/?|doi:|https?://)$`)
	doiStartRe    = regexp.MustCompile(`(?i)^[\s\W]*(?:10\.\d|doi\.org|dx\.doi\.org)`)
	leadPunctRe   = regexp.MustCompile(`^[\s.:;,\-(\[)\]]+`)
	aggStartRe    = regexp.MustCompile(`(?i)^[\s\[]*(?:https?://(?:dx\.)?doi\.org/|doi:|10\.)`)
	tokenCharsRe  = regexp.MustCompile(`^[A-Za-z0-9\-._/]+$`)
	internalDotRe = regexp.MustCompile(`\.[A-Za-z0-9]`)
)

// ConservativeReattach rejoins neighbouring fragments when the first
// ends like a DOI prefix and the second begins like an identifier.
func ConservativeReattach(frags []string) []string {
	if len(frags) == 0 {
		return frags
	}
	out := []string{frags[0]}
	for _, frag := range frags[1:] {
		prev := out[len(out)-1]
		prevStripped := strings.TrimSpace(prev)
		prevLooksLikePrefix := prefixEndRe.MatchString(prevStripped) || strings.HasSuffix(prevStripped, "/")
		if prevLooksLikePrefix && doiStartRe.MatchString(frag) {
			clean := leadPunctRe.ReplaceAllString(frag, "")
			out[len(out)-1] = strings.TrimRight(prev, " \t") + strings.TrimLeft(clean, " \t")
		} else {
			out = append(out, frag)
		}
	}
	return out
}

// AggressiveReattach rejoins a fragment starting with a DOI prefix with
// the first token of the following fragment when that token plausibly
// continues the identifier.
func AggressiveReattach(frags []string) []string {
	if len(frags) == 0 {
		return frags
	}
	out := []string{frags[0]}
	for _, frag := range frags[1:] {
		prev := out[len(out)-1]
		prevs := strings.TrimSpace(prev)
		if strings.HasSuffix(prevs, ",") || strings.HasSuffix(prevs, ";") || strings.HasSuffix(prevs, ":") {
			out = append(out, frag)
			continue
		}
		if !aggStartRe.MatchString(prevs) {
			out = append(out, frag)
			continue
		}
		clean := leadPunctRe.ReplaceAllString(frag, "")
		if clean == "" {
			out = append(out, frag)
			continue
		}
		token := strings.Fields(clean)[0]
		if !tokenCharsRe.MatchString(token) {
			out = append(out, frag)
			continue
		}
		joinOK := token == "/" ||
			strings.ContainsAny(token, "0123456789") ||
			strings.Contains(token, "_") ||
			internalDotRe.MatchString(token)
		if strings.HasSuffix(token, ".") &&
			!strings.Contains(token, "_") && !strings.Contains(token, "/") &&
			strings.Count(token, ".") <= 1 {
			joinOK = false
		}
		if !joinOK {
			out = append(out, frag)
			continue
		}
		out[len(out)-1] = strings.TrimRight(prev, " \t") + strings.TrimLeft(clean, " \t")
	}
	return out
}

// suffixes that indicate a URL/DOI continued on the next fragment.
var joinSuffixes = []string{"https://www.", "https://", "doi.org/", "doi.org", "doi.", "www.", "doi:"}

// JoinOnSuffixPrefixes attaches the first token of the next fragment
// when the current fragment ends with a URL/DOI prefix. authorPredicate,
// when non-nil, vetoes a join whose next fragment starts like an author.
func JoinOnSuffixPrefixes(frags []string, authorPredicate func(line, next string) bool) []string {
	if len(frags) == 0 {
		return frags
	}
	work := append([]string(nil), frags...)
	var out []string
	i := 0
	for i < len(work) {
		curr := work[i]
		if i+1 < len(work) {
			next := work[i+1]
			currR := strings.TrimRight(curr, " \t")
			currLower := strings.ToLower(currR)
			matched := false
			for _, suf := range joinSuffixes {
				if !strings.HasSuffix(currLower, suf) {
					continue
				}
				if authorPredicate != nil {
					nextNext := ""
					if i+2 < len(work) {
						nextNext = work[i+2]
					}
					if authorPredicate(next, nextNext) {
						break
					}
				}
				nl := strings.TrimLeft(next, " \t")
				if strings.HasPrefix(nl, "(") || strings.HasPrefix(nl, "[") {
					break
				}
				toks := strings.SplitN(nl, " ", 2)
				first := toks[0]
				rest := ""
				if len(toks) > 1 {
					rest = toks[1]
				}
				out = append(out, currR+first)
				if strings.TrimSpace(rest) != "" {
					work[i+1] = strings.TrimLeft(rest, " \t")
					i++
				} else {
					i += 2
				}
				matched = true
				break
			}
			if matched {
				continue
			}
		}
		out = append(out, curr)
		i++
	}
	return out
}

var (
	strayBareFollowedRe = regexp.MustCompile(`(?i)\b(?:dx\.doi\.org/|doi\.org/)\s*(10\.\d{4,9}/)`)
	strayBareAnyRe      = regexp.MustCompile(`(?i)\b(?:dx\.doi\.org/|doi\.org/)\s*`)
	strayColonRe        = regexp.MustCompile(`(?i)\bdoi:\s*([^\s)\],;]+)?`)
	colonIDStartRe      = regexp.MustCompile(`(?i)^\s*(?:https?://)?(?:doi\.org/)?10\.`)
)

// removeStrayPrefixes drops leftover 'doi:' and 'doi.org/' tokens not
// followed by a valid identifier; when an identifier follows, internal
// whitespace is collapsed instead.
func removeStrayPrefixes(s string) string {
	if s == "" {
		return s
	}
	s = strayBareFollowedRe.ReplaceAllString(s, "$1")
	var b strings.Builder
	last := 0
	for _, idx := range strayBareAnyRe.FindAllStringIndex(s, -1) {
		b.WriteString(s[last:idx[0]])
		// keep the prefix only when an identifier follows it
		if strings.HasPrefix(strings.TrimSpace(s[idx[1]:]), "10.") {
			b.WriteString(s[idx[0]:idx[1]])
		}
		last = idx[1]
	}
	b.WriteString(s[last:])
	s = b.String()
	s = replaceSubmatchFunc(strayColonRe, s, func(g []string) string {
		following := g[1]
		if colonIDStartRe.MatchString(following) {
			return wsRe.ReplaceAllString(following, "")
		}
		return following
	})
	s = strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
	s = spacePunctRe.ReplaceAllString(s, "$1")
	return s
}

var (
	connectorAfterRe = regexp.MustCompile(`(?i)\b(with|for|in|via)\s*(?:,?\s*)?(?:and|&)\s+`)
	isolatedAndRe    = regexp.MustCompile(`\s+and\s+([.,;:])`)
)

// cleanupDangling removes small connector artifacts left behind when a
// DOI span is removed from the middle of a sentence.
func cleanupDangling(s string) string {
	if s == "" {
		return s
	}
	s = connectorAfterRe.ReplaceAllString(s, "$1 ")
	s = isolatedAndRe.ReplaceAllString(s, " $1")
	s = strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
	s = spacePunctRe.ReplaceAllString(s, "$1")
	return s
}

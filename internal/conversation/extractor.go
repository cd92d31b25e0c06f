package conversation

import (
	"context"
	"regexp"
	"strings"

	"renovateAi/internal/catalog"
	"renovateAi/internal/vision"
)

// Preferences is the partial design intent pulled out of one message. Zero
// fields mean "nothing extracted".
type Preferences struct {
	DesiredChanges []string        `json:"desired_changes,omitempty"`
	Preserve       []string        `json:"preserve,omitempty"`
	Materials      []string        `json:"materials,omitempty"`
	Style          string          `json:"style,omitempty"`
	RoomType       vision.RoomType `json:"room_type,omitempty"`
}

// Empty reports whether nothing was extracted.
func (p Preferences) Empty() bool {
	return len(p.DesiredChanges) == 0 && len(p.Preserve) == 0 && len(p.Materials) == 0 &&
		p.Style == "" && p.RoomType == vision.RoomUnknown
}

// Extractor turns free text into Preferences.
type Extractor interface {
	Extract(ctx context.Context, text string) (Preferences, error)
}

// KeywordExtractor finds preferences with catalog keywords and a handful of
// phrase patterns. It never fails.
type KeywordExtractor struct{}

var materialVocabulary = []string{
	"butcher block", "subway tile", "ceramic tile", "porcelain tile", "stainless steel",
	"matte black", "exposed brick", "white oak", "hardwood", "laminate", "terrazzo",
	"travertine", "marble", "quartz", "granite", "concrete", "slate", "limestone",
	"oak", "walnut", "maple", "bamboo", "brass", "copper", "chrome", "nickel",
	"shiplap", "linen", "rattan", "velvet", "leather", "glass", "zellige", "brick",
}

const clauseEnd = `(?:[.,;!?]|\s+(?:and|but|with|to|so|because|while|since|as)\b|$)`

var (
	changePattern   = regexp.MustCompile(`\b(replace|update|change|remove|add|install|paint|swap|upgrade|redo|refinish|modernize|brighten|open up|tear out)\s+(?:the\s+|my\s+|our\s+|a\s+|an\s+|some\s+|all\s+)?([a-z][a-z -]{1,40}?)` + clauseEnd)
	preservePattern = regexp.MustCompile(`\b(?:keep|preserve|maintain|leave|don't touch|do not touch|don't change|do not change)\s+(?:the\s+|my\s+|our\s+|all\s+)?([a-z][a-z -]{1,40}?)` + clauseEnd)
	negation        = regexp.MustCompile(`\b(?:don't|do not|never|not)\s+(?:want\s+to\s+|need\s+to\s+)?$`)

	// clauseBreak separates the clauses a rejection can reach across.
	clauseBreak = regexp.MustCompile(`[.,;:!?]|\b(?:but|and|so|because|while|though|although|however|instead|rather|except)\b`)
	rejection   = regexp.MustCompile(`\b(?:no|not|never|without|nothing|hate|dislike|avoid|against|don't|do not|doesn't|does not)\b`)

	// hedges reads phrases that contain a rejection word without rejecting anything.
	hedges = strings.NewReplacer(
		"anything but ", "not ",
		"not sure", "unsure",
		"not certain", "unsure",
		"don't mind", "fine with",
		"do not mind", "fine with",
	)
)

// Extract implements Extractor.
func (KeywordExtractor) Extract(_ context.Context, text string) (Preferences, error) {
	lower := strings.ToLower(strings.Join(strings.Fields(text), " "))
	lower = strings.ReplaceAll(lower, "’", "'")

	var p Preferences
	p.Style = matchStyle(lower)
	p.RoomType = matchRoom(lower)

	stated := hedges.Replace(lower)
	for _, material := range materialVocabulary {
		if statedHit(stated, material) && !coveredBy(p.Materials, material) {
			p.Materials = append(p.Materials, material)
		}
	}

	for _, m := range changePattern.FindAllStringSubmatchIndex(lower, -1) {
		if negation.MatchString(lower[:m[0]]) {
			continue
		}
		verb, object := lower[m[2]:m[3]], lower[m[4]:m[5]]
		p.DesiredChanges = append(p.DesiredChanges, verb+" "+strings.TrimSpace(object))
	}
	for _, m := range preservePattern.FindAllStringSubmatch(lower, -1) {
		p.Preserve = append(p.Preserve, strings.TrimSpace(m[1]))
	}
	return p, nil
}

// matchStyle returns the catalog style with the longest keyword hit; ties go
// to the earliest mention. Styles the user rejects ("not farmhouse", "no
// boho please") are skipped.
func matchStyle(text string) string {
	text = hedges.Replace(text)
	best, bestLen, bestPos := "", 0, len(text)
	for _, s := range catalog.Styles() {
		for _, kw := range append([]string{strings.ToLower(s.Name)}, s.Keywords...) {
			for _, pos := range wordHits(text, kw) {
				if rejected(text, pos) {
					continue
				}
				if len(kw) > bestLen || (len(kw) == bestLen && pos < bestPos) {
					best, bestLen, bestPos = s.Key, len(kw), pos
				}
				break
			}
		}
	}
	return best
}

// rejected reports whether the clause leading up to pos contains a rejection
// word, e.g. "definitely not" in "modern but definitely not farmhouse".
func rejected(text string, pos int) bool {
	start := 0
	for _, m := range clauseBreak.FindAllStringIndex(text[:pos], -1) {
		start = m[1]
	}
	return rejection.MatchString(text[start:pos])
}

// statedHit reports whether word occurs at least once outside a rejection.
func statedHit(text, word string) bool {
	for _, pos := range wordHits(text, word) {
		if !rejected(text, pos) {
			return true
		}
	}
	return false
}

func matchRoom(text string) vision.RoomType {
	bestPos := len(text)
	var best vision.RoomType
	for _, r := range catalog.Rooms() {
		for _, kw := range r.Keywords {
			if pos := findWord(text, kw); pos >= 0 && pos < bestPos {
				best, bestPos = vision.ParseRoomType(r.Key), pos
			}
		}
	}
	return best
}

// findWord returns the index of the first whole-word occurrence of word in
// text, or -1.
func findWord(text, word string) int {
	if hits := wordHits(text, word); len(hits) > 0 {
		return hits[0]
	}
	return -1
}

// wordHits returns the start of every whole-word occurrence of word in text.
// A plural "s" or "es" suffix still counts as the word.
func wordHits(text, word string) []int {
	var hits []int
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], word)
		if idx < 0 {
			break
		}
		start := offset + idx
		if (start == 0 || !isLetter(text[start-1])) && wordEnds(text, start+len(word)) {
			hits = append(hits, start)
		}
		offset = start + 1
	}
	return hits
}

func wordEnds(text string, end int) bool {
	for _, suffix := range []string{"", "s", "es"} {
		if !strings.HasPrefix(text[end:], suffix) {
			continue
		}
		if e := end + len(suffix); e == len(text) || !isLetter(text[e]) {
			return true
		}
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// coveredBy reports whether material is part of a longer term already found,
// e.g. "oak" within "white oak".
func coveredBy(found []string, material string) bool {
	for _, f := range found {
		if findWord(f, material) >= 0 {
			return true
		}
	}
	return false
}

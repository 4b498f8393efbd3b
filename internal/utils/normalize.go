package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinKeywordLength is the shortest token counted as a keyword
const MinKeywordLength = 3

// noiseWords are dropped as whole tokens before keyword extraction
var noiseWords = toSet(
	// articles and prepositions
	"the", "a", "an", "of", "and", "и", "в", "на", "с", "для", "по", "из",
	// rips and sources
	"web", "webrip", "webdl", "dl", "hdrip", "bdrip", "brrip", "bluray", "blu", "ray",
	"dvdrip", "dvd", "hdtv", "tvrip", "satrip", "remux", "cam", "ts", "telesync",
	"proper", "repack", "extended", "rip",
	// encoding
	"x264", "x265", "h264", "h265", "hevc", "avc", "xvid", "divx", "10bit", "8bit",
	"hdr", "hdr10", "sdr", "dv", "mkv", "avi", "mp4",
	// resolution
	"4k", "uhd", "fhd", "hd", "sd",
	// audio tracks
	"aac", "ac3", "dts", "eac3", "ddp", "dd", "atmos", "truehd", "flac", "mp3",
	"dub", "dubbed", "mvo", "dvo", "avo", "sub", "subs", "rus", "eng", "ukr",
	"дубляж", "озвучка", "субтитры",
	// season and episode markers
	"season", "episode", "сезон", "серия", "серии", "complete",
)

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^s\d{1,3}(e\d{1,4})?$`),
	regexp.MustCompile(`^e\d{1,4}$`),
	regexp.MustCompile(`^\d{3,4}p$`),
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// foldText lower-cases s and strips combining marks (ё -> е, é -> e)
func foldText(s string) string {
	lowered := cases.Lower(language.Und).String(s)
	// transformer chains keep state, build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, lowered)
	if err != nil {
		return lowered
	}
	return folded
}

// Tokenize folds s and splits it on anything that is not a letter or digit
func Tokenize(s string) []string {
	return strings.FieldsFunc(foldText(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isNoise(token string) bool {
	if _, ok := noiseWords[token]; ok {
		return true
	}
	for _, re := range noisePatterns {
		if re.MatchString(token) {
			return true
		}
	}
	return false
}

// Normalize returns the keyword set of a free-text title: folded tokens with
// noise removed, keeping only tokens of at least MinKeywordLength runes.
func Normalize(text string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		if len([]rune(tok)) < MinKeywordLength || isNoise(tok) {
			continue
		}
		keywords[tok] = struct{}{}
	}
	return keywords
}

// NormalizedString joins the non-noise tokens of text with single spaces
func NormalizedString(text string) string {
	var kept []string
	for _, tok := range Tokenize(text) {
		if !isNoise(tok) {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

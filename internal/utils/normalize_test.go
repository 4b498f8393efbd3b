package utils

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"whitespace", "   \t ", []string{}},
		{"articles dropped", "The Lord of the Rings", []string{"lord", "rings"}},
		{"short tokens dropped", "Up or Go", []string{}},
		{"release noise", "Breaking.Bad.S01E01.1080p.WEB-DL.x264.AAC", []string{"bad", "breaking"}},
		{"russian with noise", "Во все тяжкие / Breaking Bad [1 сезон] WEBRip Дубляж", []string{"bad", "breaking", "все", "тяжкие"}},
		{"diacritics folded", "Ёлки Amélie", []string{"amelie", "елки"}},
		{"resolution pattern", "Dune 2160p 720p", []string{"dune"}},
		{"year kept", "Blade Runner 2049", []string{"2049", "blade", "runner"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keys(Normalize(tt.in)))
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	in := "Игра престолов / Game of Thrones S08 2019 BDRip"
	assert.Equal(t, keys(Normalize(in)), keys(Normalize(in)))
}

func TestNormalizedString(t *testing.T) {
	assert.Equal(t, "breaking bad", NormalizedString("Breaking.Bad.S01.1080p"))
	assert.Equal(t, "", NormalizedString(""))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"lost", "s01e02", "720p"}, Tokenize("LOST_S01E02-720p"))
}

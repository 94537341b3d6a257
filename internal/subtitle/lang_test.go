package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalLang(t *testing.T) {
	tests := []struct {
		tag      string
		expected string
	}{
		{"eng", "eng"},
		{"en", "eng"},
		{"EN-US", "eng"},
		{"pt-br", "por"},
		{"pt", "por"},
		{"fra", "fre"},
		{"deu", "ger"},
		{"zho", "chi"},
		{"xxx", "xxx"}, // unknown passes through
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CanonicalLang(tt.tag), "tag %q", tt.tag)
	}
}

func TestSameLang(t *testing.T) {
	assert.True(t, SameLang("en", "eng"))
	assert.True(t, SameLang("pt-BR", "por"))
	assert.False(t, SameLang("eng", "por"))
	assert.False(t, SameLang("", "eng"))
}

func TestLangPriority(t *testing.T) {
	assert.Equal(t, 0, LangPriority("en"))
	assert.Equal(t, 1, LangPriority("pt-br"))
	assert.Less(t, LangPriority("eng"), LangPriority("spa"))
	assert.Equal(t, -1, LangPriority("jpn"))
}

func TestLangName(t *testing.T) {
	assert.Equal(t, "English", LangName("en"))
	assert.Equal(t, "Portuguese", LangName("pt-br"))
	assert.Equal(t, "", LangName("xyz"))
}

func TestIsLikelyLanguage(t *testing.T) {
	english := []Block{
		{Index: 1, Text: []string{"The quick brown fox jumps over the lazy dog."}},
		{Index: 2, Text: []string{"I would like to know what happened here yesterday."}},
		{Index: 3, Text: []string{"Please tell me everything about the meeting."}},
		{Index: 4, Text: []string{"This is certainly the strangest thing I have seen."}},
		{Index: 5, Text: []string{"We should leave before the storm arrives tonight."}},
	}

	assert.True(t, IsLikelyLanguage(english, "eng", 5, 0.6))
	assert.False(t, IsLikelyLanguage(english, "por", 5, 0.6))
	assert.False(t, IsLikelyLanguage(nil, "eng", 5, 0.6))
}

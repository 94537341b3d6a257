package subtitle

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// langInfo ties together the spellings under which a language shows up in
// container metadata and filenames. Code is the three-letter tag used in
// generated filenames and mux arguments. The slice order doubles as the
// selection priority order.
type langInfo struct {
	Code    string
	Name    string
	Aliases []string
}

var knownLanguages = []langInfo{
	{Code: "eng", Name: "English", Aliases: []string{"eng", "en", "en-us", "en-gb", "english"}},
	{Code: "por", Name: "Portuguese", Aliases: []string{"por", "pt", "pt-br", "pt-pt", "pb", "pob", "portuguese"}},
	{Code: "spa", Name: "Spanish", Aliases: []string{"spa", "es", "es-es", "es-la", "spanish"}},
	{Code: "fre", Name: "French", Aliases: []string{"fre", "fra", "fr", "french"}},
	{Code: "ger", Name: "German", Aliases: []string{"ger", "deu", "de", "german"}},
	{Code: "dut", Name: "Dutch", Aliases: []string{"dut", "nld", "nl", "dutch"}},
	{Code: "ita", Name: "Italian", Aliases: []string{"ita", "it", "italian"}},
	{Code: "kor", Name: "Korean", Aliases: []string{"kor", "ko", "korean"}},
	{Code: "chi", Name: "Chinese", Aliases: []string{"chi", "zho", "zh", "zh-cn", "zh-tw", "chinese"}},
	{Code: "rus", Name: "Russian", Aliases: []string{"rus", "ru", "russian"}},
}

// CanonicalLang maps any known spelling of a language tag to its canonical
// three-letter code. Unknown tags are returned lowercased as-is.
func CanonicalLang(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, info := range knownLanguages {
		for _, alias := range info.Aliases {
			if alias == tag {
				return info.Code
			}
		}
	}
	return tag
}

// LangName returns the human-readable name for a language tag, or "" when
// the language is not recognized.
func LangName(tag string) string {
	code := CanonicalLang(tag)
	for _, info := range knownLanguages {
		if info.Code == code {
			return info.Name
		}
	}
	return ""
}

// SameLang reports whether two language tags refer to the same language,
// treating the different tag spellings as equivalent.
func SameLang(a, b string) bool {
	ca := CanonicalLang(a)
	cb := CanonicalLang(b)
	return ca != "" && ca == cb
}

// LangPriority returns the position of tag in the fixed language priority
// list, or -1 when the language is not in the list.
func LangPriority(tag string) int {
	code := CanonicalLang(tag)
	for i, info := range knownLanguages {
		if info.Code == code {
			return i
		}
	}
	return -1
}

// DetectLang guesses the language of a piece of text and returns its ISO
// 639-1 code, or "" when detection fails.
func DetectLang(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() && info.Confidence == 0 {
		return ""
	}
	return info.Lang.Iso6391()
}

// IsLikelyLanguage samples the first sampleSize non-empty text lines of the
// parsed blocks and reports whether more than threshold of them are detected
// as the given language. Approximate by nature; misclassification is treated
// as heuristic noise, not an error.
func IsLikelyLanguage(blocks []Block, tag string, sampleSize int, threshold float64) bool {
	if sampleSize <= 0 {
		sampleSize = 5
	}

	sampled := 0
	matched := 0
	for _, block := range blocks {
		for _, line := range block.Text {
			if strings.TrimSpace(line) == "" {
				continue
			}
			sampled++
			if SameLang(DetectLang(line), tag) {
				matched++
			}
			if sampled >= sampleSize {
				break
			}
		}
		if sampled >= sampleSize {
			break
		}
	}

	if sampled == 0 {
		return false
	}
	return float64(matched)/float64(sampled) > threshold
}

package captions

import (
	"sort"
	"strings"
)

// Selection is the caption language chosen for a video.
type Selection struct {
	Language string
	Auto     bool
}

var (
	englishPrefs = []string{"en", "en-US", "en-GB"}
	chinesePrefs = []string{"zh-Hant", "zh-TW", "zh", "zh-Hans"}
)

// PreferencesFor returns the caption languages to try, in order. A
// requested language (single URL jobs) is tried before the defaults for
// the query language.
func PreferencesFor(queryLang, requested string) []string {
	base := chinesePrefs
	if strings.HasPrefix(strings.ToLower(queryLang), "en") {
		base = englishPrefs
	}

	prefs := make([]string, 0, len(base)+1)
	if requested != "" {
		prefs = append(prefs, requested)
	}
	for _, lang := range base {
		if lang != requested {
			prefs = append(prefs, lang)
		}
	}
	return prefs
}

// usable reports whether a language has at least one track that is not
// live chat.
func usable(tracks []Track) bool {
	for _, t := range tracks {
		if t.Ext != "json" && !strings.Contains(t.Protocol, "live_chat") {
			return true
		}
	}
	return false
}

func usableLanguages(tracks map[string][]Track) map[string]bool {
	langs := make(map[string]bool)
	for lang, list := range tracks {
		if lang == "live_chat" || !usable(list) {
			continue
		}
		langs[lang] = true
	}
	return langs
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SelectTrack picks the first preferred language available as a human or
// automatic track, falling back to the first available language. Human
// tracks win over automatic ones for the same language.
func SelectTrack(info *VideoInfo, prefs []string) (Selection, bool) {
	if info == nil {
		return Selection{}, false
	}

	human := usableLanguages(info.Subtitles)
	auto := usableLanguages(info.AutomaticCaptions)

	for _, lang := range prefs {
		if human[lang] {
			return Selection{Language: lang}, true
		}
		if auto[lang] {
			return Selection{Language: lang, Auto: true}, true
		}
	}

	if langs := sortedKeys(human); len(langs) > 0 {
		return Selection{Language: langs[0]}, true
	}
	if langs := sortedKeys(auto); len(langs) > 0 {
		return Selection{Language: langs[0], Auto: true}, true
	}
	return Selection{}, false
}

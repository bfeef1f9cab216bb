package captions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreferencesFor(t *testing.T) {
	assert.Equal(t, []string{"en", "en-US", "en-GB"}, PreferencesFor("en", ""))
	assert.Equal(t, []string{"en", "en-US", "en-GB"}, PreferencesFor("en-US", ""))
	assert.Equal(t, []string{"zh-Hant", "zh-TW", "zh", "zh-Hans"}, PreferencesFor("zh-TW", ""))
	assert.Equal(t, []string{"ja", "zh-Hant", "zh-TW", "zh", "zh-Hans"}, PreferencesFor("ja", "ja"))
	assert.Equal(t, []string{"en-GB", "en", "en-US"}, PreferencesFor("en", "en-GB"))
}

func TestSelectTrack(t *testing.T) {
	vtt := []Track{{Ext: "vtt"}}
	liveChat := []Track{{Ext: "json", Protocol: "youtube_live_chat"}}

	tests := []struct {
		name   string
		info   *VideoInfo
		prefs  []string
		want   Selection
		wantOK bool
	}{
		{
			name:   "preferred human",
			info:   &VideoInfo{Subtitles: map[string][]Track{"en": vtt, "fr": vtt}},
			prefs:  []string{"en"},
			want:   Selection{Language: "en"},
			wantOK: true,
		},
		{
			name: "human beats auto for the same language",
			info: &VideoInfo{
				Subtitles:         map[string][]Track{"en": vtt},
				AutomaticCaptions: map[string][]Track{"en": vtt},
			},
			prefs:  []string{"en"},
			want:   Selection{Language: "en"},
			wantOK: true,
		},
		{
			name: "preference order wins over track kind",
			info: &VideoInfo{
				Subtitles:         map[string][]Track{"zh-TW": vtt},
				AutomaticCaptions: map[string][]Track{"zh-Hant": vtt},
			},
			prefs:  []string{"zh-Hant", "zh-TW"},
			want:   Selection{Language: "zh-Hant", Auto: true},
			wantOK: true,
		},
		{
			name: "fallback prefers human sorted",
			info: &VideoInfo{
				Subtitles:         map[string][]Track{"fr": vtt, "de": vtt},
				AutomaticCaptions: map[string][]Track{"ar": vtt},
			},
			prefs:  []string{"en"},
			want:   Selection{Language: "de"},
			wantOK: true,
		},
		{
			name:   "fallback to auto",
			info:   &VideoInfo{AutomaticCaptions: map[string][]Track{"ko": vtt, "es": vtt}},
			prefs:  []string{"en"},
			want:   Selection{Language: "es", Auto: true},
			wantOK: true,
		},
		{
			name:   "live chat ignored",
			info:   &VideoInfo{Subtitles: map[string][]Track{"live_chat": liveChat, "en": liveChat}},
			prefs:  []string{"en"},
			wantOK: false,
		},
		{
			name:   "nothing",
			info:   &VideoInfo{},
			prefs:  []string{"en"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectTrack(tt.info, tt.prefs)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

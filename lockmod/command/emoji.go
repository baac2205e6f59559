package command

import (
	"github.com/rivo/uniseg"
)

const (
	variationSelector16 = '\uFE0F'
	combiningKeycap     = '\u20E3'
)

// Reports whether s is exactly one grapheme cluster which is an emoji. Skin tone modifiers, ZWJ sequences, flags and keycaps all count as a single emoji.
func SingleEmoji(s string) bool {
	gr := uniseg.NewGraphemes(s)
	if !gr.Next() {
		return false
	}
	if !isEmojiCluster(gr.Runes()) {
		return false
	}
	// anything after the first cluster means more than one symbol
	return !gr.Next()
}

// Keycaps (1️⃣, #️⃣) and text symbols with emoji presentation (↔️) start with a non-emoji rune.
func isEmojiCluster(runes []rune) bool {
	if isEmojiRune(runes[0]) {
		return true
	}
	if len(runes) < 2 {
		return false
	}
	if runes[len(runes)-1] == combiningKeycap {
		return true
	}
	for _, r := range runes[1:] {
		if r == variationSelector16 {
			return true
		}
	}
	return false
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FFFF:
		// pictographs, emoticons, transport, flags (regional indicators)
		return true
	case r >= 0x2600 && r <= 0x27BF:
		// misc symbols and dingbats
		return true
	case r >= 0x2300 && r <= 0x23FF, r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r == 0x00A9, r == 0x00AE, r == 0x203C, r == 0x2049, r == 0x2122, r == 0x2139, r == 0x3030, r == 0x303D:
		return true
	default:
		return false
	}
}

package language

import "unicode"

// detectSampleRunes bounds how much of the input the script heuristic reads.
const detectSampleRunes = 500

// DetectByScript guesses the language of text from Unicode script ratios
// over its first 500 code points. It is the fallback when model-based
// detection is unavailable or unparsable. The zero-confidence return only
// happens for empty input.
func DetectByScript(text string) (code string, confidence float64) {
	var sample []rune
	for _, r := range text {
		sample = append(sample, r)
		if len(sample) == detectSampleRunes {
			break
		}
	}
	total := len(sample)
	if total == 0 {
		return "", 0
	}

	var cjk, hiragana, katakana, hangul, latin int
	for _, r := range sample {
		switch {
		case unicode.In(r, unicode.Hiragana):
			hiragana++
		case unicode.In(r, unicode.Katakana):
			katakana++
		case unicode.In(r, unicode.Hangul):
			hangul++
		case unicode.In(r, unicode.Han):
			cjk++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
		}
	}

	t := float64(total)
	switch {
	case float64(hiragana+katakana)/t > 0.1:
		return "ja", 0.7
	case float64(hangul)/t > 0.1:
		return "ko", 0.7
	case float64(cjk)/t > 0.3:
		return "zh-TW", 0.6
	case float64(latin)/t > 0.5:
		return "en", 0.6
	}
	return "zh-TW", 0.5
}

// minPlausibleLetters is the least number of target-script letters a
// translation must carry to count as "looking like" the target.
const minPlausibleLetters = 3

// LooksLike reports whether text plausibly is written in the target
// language. Only English and the Chinese variants have a real check; other
// targets are accepted as-is.
func LooksLike(target, text string) bool {
	var cjk, latin int
	for _, r := range text {
		switch {
		case unicode.In(r, unicode.Han):
			cjk++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
		}
	}

	switch target {
	case "en":
		return latin >= minPlausibleLetters && latin >= cjk
	case "zh-TW", "zh-CN":
		return cjk >= minPlausibleLetters && cjk >= latin
	default:
		return true
	}
}

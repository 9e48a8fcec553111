package emotion

import "strings"

// Different model vocabularies name the same emotion differently
// ("anger" vs "angry", "surprise" vs "surprised", "happiness" vs "happy").
// We match native labels to canonical keys by case-insensitive substring.
// The table is ordered: the first matching entry wins, so more specific
// substrings must come before substrings they contain (eg "unhappy"
// before "happy").

type synonym struct {
	substr string // lowercase substring to search for in the native label
	key    string // canonical key
}

var synonyms = []synonym{
	{"unhappy", Sad},
	{"angry", Angry},
	{"anger", Angry},
	{"disgust", Disgust},
	{"fear", Fear},
	{"afraid", Fear},
	{"scared", Fear},
	{"happ", Happy}, // happy, happiness
	{"joy", Happy},
	{"sad", Sad},
	{"sorrow", Sad},
	{"surprise", Surprised},
	{"astonish", Surprised},
	{"neutral", Neutral},
	{"calm", Neutral},
}

// Map a model-native label to a canonical key.
// Returns ok=false if the label matches no synonym; such labels are
// dropped by callers, and their score reaches no canonical key.
func MapLabel(label string) (key string, ok bool) {
	lower := strings.ToLower(label)
	for _, s := range synonyms {
		if strings.Contains(lower, s.substr) {
			return s.key, true
		}
	}
	return "", false
}

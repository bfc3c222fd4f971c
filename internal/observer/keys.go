package observer

// productiveKeys are the named keys that count as work input.
var productiveKeys = map[string]struct{}{
	"Enter":      {},
	"Space":      {},
	"Tab":        {},
	"Backspace":  {},
	"Delete":     {},
	"ArrowUp":    {},
	"ArrowDown":  {},
	"ArrowLeft":  {},
	"ArrowRight": {},
}

// IsProductiveKey reports whether a keydown with this key value counts as a
// primary interaction: a single ASCII letter or digit, or one of the editing
// and navigation keys.
func IsProductiveKey(key string) bool {
	if len(key) == 1 {
		c := key[0]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			return true
		}
	}
	_, ok := productiveKeys[key]
	return ok
}

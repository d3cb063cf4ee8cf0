package sri

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// ilegalXML cubre los code points prohibidos por XML 1.0: controles C0 salvo
// TAB/LF/CR, surrogates y los no-caracteres U+FFFE/U+FFFF. El escape de
// entidades (&<>"') lo hace el encoder al serializar.
var ilegalXML = runes.Predicate(func(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return false
	case r < 0x20:
		return true
	case r >= 0xD800 && r <= 0xDFFF:
		return true
	case r == 0xFFFE || r == 0xFFFF:
		return true
	case !unicode.IsGraphic(r) && !unicode.IsSpace(r):
		return true
	default:
		return false
	}
})

var limpiadorXML = runes.Remove(ilegalXML)

// SanitizarTexto elimina del texto los code points ilegales en XML 1.0.
func SanitizarTexto(s string) string {
	out, _, err := transform.String(limpiadorXML, s)
	if err != nil {
		// transform.String solo falla ante UTF-8 inválido; en ese caso se
		// filtra byte a byte descartando lo no decodificable.
		var b []rune
		for _, r := range s {
			if r == unicode.ReplacementChar {
				continue
			}
			if !ilegalXML.Contains(r) {
				b = append(b, r)
			}
		}
		return string(b)
	}
	return out
}

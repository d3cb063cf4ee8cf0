package sri

import "strings"

// ExtraerDigitos deja únicamente los dígitos 0-9 de la cadena (útil para RUC y cédula).
func ExtraerDigitos(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizarRUC completa una cédula de 10 dígitos con el sufijo "001" para
// obtener el RUC de persona natural. Un RUC de 13 dígitos se devuelve tal cual.
// Cualquier otro ancho devuelve cadena vacía.
func NormalizarRUC(id string) string {
	digits := ExtraerDigitos(id)
	switch len(digits) {
	case 13:
		return digits
	case 10:
		return digits + "001"
	default:
		return ""
	}
}

// RUCValido indica si la cadena es un RUC de 13 dígitos terminado en un código
// de establecimiento no nulo.
func RUCValido(ruc string) bool {
	if !soloDigitosLen(ruc, 13) {
		return false
	}
	return ruc[10:] != "000"
}

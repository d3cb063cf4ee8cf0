// Cálculo de la clave de acceso de 49 dígitos (módulo 11, Ficha Técnica SRI).

package sri

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// coeficientes del módulo 11 SRI. Se aplican a los 48 dígitos base desde el
// dígito menos significativo (derecha a izquierda), repitiendo el ciclo 2..7.
var claveCoeficientes = [6]int{2, 3, 4, 5, 6, 7}

// Longitudes fijas de los campos de la clave de acceso.
const (
	claveLenFecha      = 8  // DDMMYYYY
	claveLenTipoDoc    = 2
	claveLenRUC        = 13
	claveLenAmbiente   = 1
	claveLenSerie      = 6 // establecimiento + punto de emisión
	claveLenSecuencial = 9
	claveLenCodigo     = 8
	claveLenEmision    = 1
	claveLenBase       = 48
	claveLenTotal      = 49
)

// ClaveAccesoParams agrupa los campos de la clave de acceso en el orden que
// exige el SRI: fecha | tipoDoc | ruc | ambiente | serie | secuencial |
// códigoNumérico | tipoEmisión | dígitoVerificador.
type ClaveAccesoParams struct {
	FechaEmision    time.Time
	TipoComprobante string // "01" factura, "04" nota de crédito, etc.
	RUC             string // 13 dígitos
	Ambiente        string // "1" pruebas, "2" producción
	Serie           string // 6 dígitos (estab + punto emisión)
	Secuencial      string // hasta 9 dígitos; se rellena con ceros a la izquierda
	CodigoNumerico  string // 8 dígitos; vacío = se genera aleatorio
	TipoEmision     string // "1" normal
}

// GenerarClaveAcceso arma la clave de 49 dígitos y calcula el dígito verificador.
// Devuelve error si algún campo no tiene el ancho exigido por el SRI.
func GenerarClaveAcceso(p ClaveAccesoParams) (string, error) {
	if p.FechaEmision.IsZero() {
		return "", fmt.Errorf("sri: fecha de emisión es obligatoria")
	}
	if !TiposComprobanteValidos[p.TipoComprobante] {
		return "", fmt.Errorf("sri: tipo de comprobante inválido %q", p.TipoComprobante)
	}
	if !soloDigitosLen(p.RUC, claveLenRUC) {
		return "", fmt.Errorf("sri: RUC debe tener %d dígitos, se recibió %q", claveLenRUC, p.RUC)
	}
	if !AmbienteValido(p.Ambiente) {
		return "", fmt.Errorf("sri: ambiente inválido %q (usar 1 o 2)", p.Ambiente)
	}
	if !soloDigitosLen(p.Serie, claveLenSerie) {
		return "", fmt.Errorf("sri: serie debe tener %d dígitos (estab+punto), se recibió %q", claveLenSerie, p.Serie)
	}

	secuencial := strings.TrimSpace(p.Secuencial)
	if secuencial == "" || len(secuencial) > claveLenSecuencial || !soloDigitos(secuencial) {
		return "", fmt.Errorf("sri: secuencial debe tener entre 1 y %d dígitos, se recibió %q", claveLenSecuencial, p.Secuencial)
	}
	secuencial = strings.Repeat("0", claveLenSecuencial-len(secuencial)) + secuencial

	codigo := p.CodigoNumerico
	if codigo == "" {
		var err error
		codigo, err = CodigoNumericoAleatorio()
		if err != nil {
			return "", err
		}
	}
	if !soloDigitosLen(codigo, claveLenCodigo) {
		return "", fmt.Errorf("sri: código numérico debe tener %d dígitos, se recibió %q", claveLenCodigo, codigo)
	}

	emision := p.TipoEmision
	if emision == "" {
		emision = EmisionNormal
	}
	if !soloDigitosLen(emision, claveLenEmision) {
		return "", fmt.Errorf("sri: tipo de emisión inválido %q", p.TipoEmision)
	}

	base := p.FechaEmision.Format("02012006") +
		p.TipoComprobante +
		p.RUC +
		p.Ambiente +
		p.Serie +
		secuencial +
		codigo +
		emision

	if len(base) != claveLenBase {
		return "", fmt.Errorf("sri: base de clave de acceso debe tener %d dígitos, se obtuvo %d", claveLenBase, len(base))
	}

	dv, err := DigitoVerificador(base)
	if err != nil {
		return "", err
	}
	return base + string(rune('0'+dv)), nil
}

// DigitoVerificador calcula el dígito verificador módulo 11 de los 48 dígitos
// base. Los coeficientes 2..7 se aplican cíclicamente desde la derecha; con
// m = suma mod 11 y r = 11 - m, el dígito es 0 si r == 11 y 1 si r == 10.
// El mapeo {11→0, 10→1} es específico del SRI; otras variantes de módulo 11
// colapsan ambos casos en 0 y producen claves rechazadas.
func DigitoVerificador(base string) (int, error) {
	if !soloDigitosLen(base, claveLenBase) {
		return 0, fmt.Errorf("sri: la base debe tener %d dígitos numéricos, se recibió %d", claveLenBase, len(base))
	}
	var suma int
	for i := 0; i < claveLenBase; i++ {
		d := int(base[claveLenBase-1-i] - '0')
		suma += d * claveCoeficientes[i%len(claveCoeficientes)]
	}
	r := 11 - suma%11
	switch r {
	case 11:
		return 0, nil
	case 10:
		return 1, nil
	default:
		return r, nil
	}
}

// ValidarClaveAcceso verifica que la clave tenga 49 dígitos y que el último
// coincida con el dígito verificador calculado sobre los 48 primeros.
func ValidarClaveAcceso(clave string) bool {
	if !soloDigitosLen(clave, claveLenTotal) {
		return false
	}
	dv, err := DigitoVerificador(clave[:claveLenBase])
	if err != nil {
		return false
	}
	return int(clave[claveLenBase]-'0') == dv
}

// CodigoNumericoAleatorio genera los 8 dígitos aleatorios de la clave de acceso
// con crypto/rand. Es la única fuente de no determinismo del generador; los
// tests inyectan un código fijo vía ClaveAccesoParams.CodigoNumerico.
func CodigoNumericoAleatorio() (string, error) {
	max := big.NewInt(100_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("sri: generar código numérico: %w", err)
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}

func soloDigitos(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func soloDigitosLen(s string, n int) bool {
	return len(s) == n && soloDigitos(s)
}

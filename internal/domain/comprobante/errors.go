package comprobante

import "errors"

// Errores de dominio del ciclo de emisión (sin dependencias externas).
// Entrada, credencial, esquema y firma nunca se reintentan; transporte y
// temporal del SRI se reintentan según la política del cliente SOAP.
var (
	ErrEntradaInvalida    = errors.New("entrada inválida")
	ErrAmbienteInvalido   = errors.New("ambiente inválido")
	ErrCredencialInvalida = errors.New("credencial inválida")
	ErrEsquemaInvalido    = errors.New("esquema del comprobante inválido")
	ErrFirma              = errors.New("error de firma")
	ErrTransporte         = errors.New("error de transporte con el SRI")
	ErrSriTemporal        = errors.New("error temporal del SRI")
	ErrProtocoloSri       = errors.New("respuesta del SRI malformada")
	ErrNoEncontrado       = errors.New("comprobante no encontrado")
	ErrNoSoportado        = errors.New("tipo de comprobante no soportado")
)

// Categoria mapea un error de emisión a la categoría estable que ve el usuario:
// certificado, firma, conectividad, configuracion o interno.
func Categoria(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCredencialInvalida):
		return "certificado"
	case errors.Is(err, ErrFirma), errors.Is(err, ErrEsquemaInvalido):
		return "firma"
	case errors.Is(err, ErrTransporte), errors.Is(err, ErrSriTemporal), errors.Is(err, ErrProtocoloSri):
		return "conectividad"
	case errors.Is(err, ErrEntradaInvalida), errors.Is(err, ErrAmbienteInvalido):
		return "configuracion"
	default:
		return "interno"
	}
}

// Reintentable indica si el error puede resolverse reintentando la llamada.
func Reintentable(err error) bool {
	return errors.Is(err, ErrTransporte) || errors.Is(err, ErrSriTemporal)
}

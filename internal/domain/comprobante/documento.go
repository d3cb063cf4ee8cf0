package comprobante

import "time"

// DocumentoFirmado comprobante XML con la firma XML-DSIG incrustada.
// Inmutable una vez producido por el firmador: los bytes son exactamente los
// que se envían al SRI (cualquier re-serialización invalidaría el digest).
type DocumentoFirmado struct {
	XML         []byte
	RaizLocal   string // nombre local del elemento raíz (ej: "factura")
	ClaveAcceso string
}

// EstadoRecepcion respuesta del servicio de recepción del SRI.
type EstadoRecepcion string

const (
	RecepcionRecibida EstadoRecepcion = "RECIBIDA"
	RecepcionDevuelta EstadoRecepcion = "DEVUELTA"
)

// ResultadoRecepcion resultado de validarComprobante.
type ResultadoRecepcion struct {
	Estado   EstadoRecepcion
	Mensajes []Mensaje
}

// PoliticaReintento acota los reintentos ante fallos transitorios del SRI.
type PoliticaReintento struct {
	MaxIntentos int
	Espera      time.Duration
}

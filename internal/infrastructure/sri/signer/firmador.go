package signer

import (
	"fmt"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
)

// FirmadorP12 firma comprobantes cargando la credencial PKCS#12 en cada
// llamada y liberándola al terminar. Así un .p12 renovado en disco entra en
// vigor sin reiniciar el proceso, y la llave privada no queda residente.
type FirmadorP12 struct {
	Ruta     string // ruta al archivo .p12/.pfx
	B64      string // alternativa: contenedor en base64 (tiene prioridad si ambos están)
	Clave    string
	servicio *ServicioFirma
}

// NewFirmadorP12 crea el firmador. ruta y b64 son excluyentes en la práctica;
// si llegan ambos gana b64.
func NewFirmadorP12(ruta, b64, clave string) *FirmadorP12 {
	return &FirmadorP12{Ruta: ruta, B64: b64, Clave: clave, servicio: NewServicioFirma()}
}

// Firmar implementa el puerto de firma de la capa de aplicación.
func (f *FirmadorP12) Firmar(xmlBytes []byte) (*comprobante.DocumentoFirmado, error) {
	cred, err := f.cargar()
	if err != nil {
		return nil, err
	}
	defer cred.Liberar()
	return f.servicio.Firmar(xmlBytes, cred)
}

// Titular carga la credencial solo para inspección (RUC y nombre del titular).
func (f *FirmadorP12) Titular() (ruc, nombre string, err error) {
	cred, err := f.cargar()
	if err != nil {
		return "", "", err
	}
	defer cred.Liberar()
	return cred.RUCTitular, cred.NombreTitular, nil
}

func (f *FirmadorP12) cargar() (*Credencial, error) {
	switch {
	case f.B64 != "":
		return CargarDesdeBase64(f.B64, f.Clave)
	case f.Ruta != "":
		return CargarDesdeArchivo(f.Ruta, f.Clave)
	default:
		return nil, fmt.Errorf("%w: no hay certificado configurado (CERTIFICADO_PATH o CERT_P12_BASE64)", comprobante.ErrCredencialInvalida)
	}
}

// Puertos de salida del ciclo de emisión. Las implementaciones concretas viven
// en internal/infrastructure/sri; para tests se inyectan mocks.

package emission

import (
	"context"
	"time"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
)

// ConstructorXML genera los bytes del comprobante sin firma.
type ConstructorXML interface {
	BuildFactura(f *comprobante.Factura, claveAcceso string) ([]byte, error)
	BuildNotaCredito(f *comprobante.Factura, claveAcceso string) ([]byte, error)
	// FechaAjustada aplica el clamp de reloj; la clave de acceso y el XML
	// deben salir de la misma fecha.
	FechaAjustada(fecha time.Time) time.Time
}

// Firmador incrusta la firma XML-DSIG en el comprobante.
type Firmador interface {
	Firmar(xml []byte) (*comprobante.DocumentoFirmado, error)
}

// ClienteSRI puerto hacia los web services de recepción y autorización.
type ClienteSRI interface {
	EnviarRecepcion(ctx context.Context, xmlFirmado []byte) (*comprobante.ResultadoRecepcion, error)
	ConsultarAutorizacion(ctx context.Context, clave string) (*comprobante.RegistroAutorizacion, error)
	BuscarAutorizacion(ctx context.Context, clave string) (*comprobante.RegistroAutorizacion, error)
}

// Almacen persiste el artefacto XML de cada transición de estado.
type Almacen interface {
	Guardar(estado comprobante.Estado, clave string, xml []byte) (string, error)
}

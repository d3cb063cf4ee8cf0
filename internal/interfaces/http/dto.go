package http

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
)

// ErrorResponse respuesta de error estándar de la API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EmitirFacturaRequest cuerpo de POST /api/v1/comprobantes. El emisor y el
// ambiente no viajan en el request: salen de la configuración del servicio.
type EmitirFacturaRequest struct {
	Secuencial    string                `json:"secuencial"`
	FechaEmision  string                `json:"fechaEmision"` // "2006-01-02" o RFC3339
	Comprador     CompradorDTO          `json:"comprador"`
	Detalles      []DetalleDTO          `json:"detalles"`
	Pagos         []PagoDTO             `json:"pagos,omitempty"`
	Propina       decimal.Decimal       `json:"propina,omitempty"`
	InfoAdicional []CampoAdicionalDTO   `json:"infoAdicional,omitempty"`
}

type CompradorDTO struct {
	TipoIdentificacion string `json:"tipoIdentificacion"`
	Identificacion     string `json:"identificacion"`
	RazonSocial        string `json:"razonSocial"`
	Direccion          string `json:"direccion,omitempty"`
	Email              string `json:"email,omitempty"`
	Telefono           string `json:"telefono,omitempty"`
}

type DetalleDTO struct {
	CodigoPrincipal        string          `json:"codigoPrincipal,omitempty"`
	Descripcion            string          `json:"descripcion"`
	Cantidad               decimal.Decimal `json:"cantidad"`
	PrecioUnitario         decimal.Decimal `json:"precioUnitario"`
	Descuento              decimal.Decimal `json:"descuento,omitempty"`
	PrecioTotalSinImpuesto decimal.Decimal `json:"precioTotalSinImpuesto,omitempty"`
	Impuestos              []ImpuestoDTO   `json:"impuestos"`
}

type ImpuestoDTO struct {
	Codigo           string          `json:"codigo"`
	CodigoPorcentaje string          `json:"codigoPorcentaje"`
	Tarifa           decimal.Decimal `json:"tarifa,omitempty"`
	BaseImponible    decimal.Decimal `json:"baseImponible"`
	Valor            decimal.Decimal `json:"valor"`
}

type PagoDTO struct {
	FormaPago string          `json:"formaPago"`
	Total     decimal.Decimal `json:"total"`
}

type CampoAdicionalDTO struct {
	Nombre string `json:"nombre"`
	Valor  string `json:"valor"`
}

// ResultadoResponse desenlace de la emisión.
type ResultadoResponse struct {
	ClaveAcceso        string       `json:"claveAcceso"`
	Estado             string       `json:"estado"`
	NumeroAutorizacion string       `json:"numeroAutorizacion,omitempty"`
	Mensajes           []MensajeDTO `json:"mensajes,omitempty"`
	Exito              bool         `json:"exito"`
}

type MensajeDTO struct {
	Identificador        string `json:"identificador"`
	Mensaje              string `json:"mensaje"`
	InformacionAdicional string `json:"informacionAdicional,omitempty"`
	Tipo                 string `json:"tipo"`
}

// AutorizacionResponse respuesta de GET /api/v1/comprobantes/:clave.
type AutorizacionResponse struct {
	ClaveAcceso        string       `json:"claveAcceso"`
	Estado             string       `json:"estado"`
	NumeroAutorizacion string       `json:"numeroAutorizacion,omitempty"`
	FechaAutorizacion  string       `json:"fechaAutorizacion,omitempty"`
	Mensajes           []MensajeDTO `json:"mensajes,omitempty"`
}

// AFactura convierte el request al registro de dominio, completando emisor y
// ambiente desde la configuración.
func (r EmitirFacturaRequest) AFactura(emisor comprobante.Emisor, ambiente string) (*comprobante.Factura, error) {
	fecha, err := parseFecha(r.FechaEmision)
	if err != nil {
		return nil, err
	}

	f := &comprobante.Factura{
		Emisor:       emisor,
		Ambiente:     ambiente,
		Secuencial:   r.Secuencial,
		FechaEmision: fecha,
		Comprador: comprobante.Comprador{
			TipoIdentificacion: r.Comprador.TipoIdentificacion,
			Identificacion:     r.Comprador.Identificacion,
			RazonSocial:        r.Comprador.RazonSocial,
			Direccion:          r.Comprador.Direccion,
			Email:              r.Comprador.Email,
			Telefono:           r.Comprador.Telefono,
		},
		Propina: r.Propina,
	}
	for _, d := range r.Detalles {
		det := comprobante.Detalle{
			CodigoPrincipal:        d.CodigoPrincipal,
			Descripcion:            d.Descripcion,
			Cantidad:               d.Cantidad,
			PrecioUnitario:         d.PrecioUnitario,
			Descuento:              d.Descuento,
			PrecioTotalSinImpuesto: d.PrecioTotalSinImpuesto,
		}
		for _, imp := range d.Impuestos {
			det.Impuestos = append(det.Impuestos, comprobante.Impuesto{
				Codigo:           imp.Codigo,
				CodigoPorcentaje: imp.CodigoPorcentaje,
				Tarifa:           imp.Tarifa,
				BaseImponible:    imp.BaseImponible,
				Valor:            imp.Valor,
			})
		}
		f.Detalles = append(f.Detalles, det)
	}
	for _, p := range r.Pagos {
		f.Pagos = append(f.Pagos, comprobante.Pago{FormaPago: p.FormaPago, Total: p.Total})
	}
	for _, c := range r.InfoAdicional {
		f.InfoAdicional = append(f.InfoAdicional, comprobante.CampoAdicional{Nombre: c.Nombre, Valor: c.Valor})
	}
	return f, nil
}

func parseFecha(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("fechaEmision requerida")
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("fechaEmision inválida %q (usar 2006-01-02 o RFC3339)", s)
}

func mensajesDTO(ms []comprobante.Mensaje) []MensajeDTO {
	if len(ms) == 0 {
		return nil
	}
	out := make([]MensajeDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, MensajeDTO{
			Identificador:        m.Identificador,
			Mensaje:              m.Mensaje,
			InformacionAdicional: m.InformacionAdicional,
			Tipo:                 m.Tipo,
		})
	}
	return out
}

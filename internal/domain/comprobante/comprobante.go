// Package comprobante define el modelo normalizado de una factura electrónica
// SRI (Ecuador) y su ciclo de vida de emisión.
package comprobante

import (
	"time"

	"github.com/shopspring/decimal"
)

// Emisor identidad tributaria del contribuyente que emite el comprobante.
type Emisor struct {
	RUC                   string
	RazonSocial           string
	NombreComercial       string
	DireccionMatriz       string
	DireccionEstablecimiento string
	CodigoEstablecimiento string // 3 dígitos (ej: "001")
	PuntoEmision          string // 3 dígitos (ej: "001")
	ObligadoContabilidad  bool
}

// Serie devuelve los 6 dígitos establecimiento + punto de emisión.
func (e Emisor) Serie() string {
	return e.CodigoEstablecimiento + e.PuntoEmision
}

// Comprador datos del adquiriente.
type Comprador struct {
	TipoIdentificacion string // "04" RUC, "05" cédula, "06" pasaporte, "07" consumidor final
	Identificacion     string
	RazonSocial        string
	Direccion          string
	Email              string
	Telefono           string
}

// Impuesto impuesto aplicado a un detalle (IVA, ICE, IRBPNR).
type Impuesto struct {
	Codigo           string          // "2" IVA
	CodigoPorcentaje string          // "0", "2", "3", "8", ...
	Tarifa           decimal.Decimal // porcentaje; cero = derivar del código
	BaseImponible    decimal.Decimal
	Valor            decimal.Decimal
}

// Detalle línea de la factura.
type Detalle struct {
	CodigoPrincipal string
	Descripcion     string
	Cantidad        decimal.Decimal
	PrecioUnitario  decimal.Decimal
	Descuento       decimal.Decimal
	// PrecioTotalSinImpuesto almacenado por el origen (POS). Siempre se deriva
	// cantidad*precioUnitario-descuento; si este campo viene con valor se
	// valida contra el derivado con tolerancia de un centavo.
	PrecioTotalSinImpuesto decimal.Decimal
	Impuestos              []Impuesto
}

// PrecioTotalDerivado es cantidad × precioUnitario − descuento (2 decimales).
func (d Detalle) PrecioTotalDerivado() decimal.Decimal {
	return d.Cantidad.Mul(d.PrecioUnitario).Sub(d.Descuento).Round(2)
}

// Pago forma de pago de la factura.
type Pago struct {
	FormaPago string
	Total     decimal.Decimal
}

// CampoAdicional par nombre/valor de infoAdicional.
type CampoAdicional struct {
	Nombre string
	Valor  string
}

// Factura registro normalizado de la venta listo para generar el comprobante.
type Factura struct {
	Emisor       Emisor
	Ambiente     string // "1" pruebas, "2" producción
	TipoEmision  string // "1" normal
	Secuencial   string // hasta 9 dígitos
	FechaEmision time.Time
	Comprador    Comprador
	Detalles     []Detalle
	Pagos        []Pago
	Propina      decimal.Decimal
	Moneda       string
	InfoAdicional []CampoAdicional
}

// TotalSinImpuestos suma de los precios totales derivados de los detalles.
func (f Factura) TotalSinImpuestos() decimal.Decimal {
	total := decimal.Zero
	for _, d := range f.Detalles {
		total = total.Add(d.PrecioTotalDerivado())
	}
	return total.Round(2)
}

// TotalDescuento suma de descuentos por línea.
func (f Factura) TotalDescuento() decimal.Decimal {
	total := decimal.Zero
	for _, d := range f.Detalles {
		total = total.Add(d.Descuento)
	}
	return total.Round(2)
}

// TotalImpuestos suma del valor de todos los impuestos por línea.
func (f Factura) TotalImpuestos() decimal.Decimal {
	total := decimal.Zero
	for _, d := range f.Detalles {
		for _, imp := range d.Impuestos {
			total = total.Add(imp.Valor)
		}
	}
	return total.Round(2)
}

// ImporteTotal = totalSinImpuestos + impuestos + propina. El descuento ya está
// restado en los precios totales por línea.
func (f Factura) ImporteTotal() decimal.Decimal {
	return f.TotalSinImpuestos().Add(f.TotalImpuestos()).Add(f.Propina).Round(2)
}

// Mensaje mensaje devuelto por los servicios del SRI.
type Mensaje struct {
	Identificador        string
	Mensaje              string
	InformacionAdicional string
	Tipo                 string
}

// RegistroAutorizacion respuesta del servicio de autorización para una clave.
type RegistroAutorizacion struct {
	Estado              Estado
	NumeroAutorizacion  string
	FechaAutorizacion   time.Time
	Mensajes            []Mensaje
	ComprobanteXML      []byte // XML autorizado, si el SRI lo devuelve
}

// ResultadoFinal desenlace de un ciclo completo de emisión.
// Un RECHAZADO es un resultado terminal válido, no un error de proceso.
type ResultadoFinal struct {
	ClaveAcceso        string
	Estado             Estado
	NumeroAutorizacion string
	Mensajes           []Mensaje
	Exito              bool // true solo si Estado == AUTORIZADO
}

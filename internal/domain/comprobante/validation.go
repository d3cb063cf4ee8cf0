package comprobante

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/facturacion-sri/pkg/sri"
)

// toleranciaCentavo tolerancia al comparar el precio total almacenado por el
// origen contra el derivado cantidad*precioUnitario-descuento.
var toleranciaCentavo = decimal.NewFromFloat(0.01)

// ValidarFactura valida el registro normalizado antes de generar el XML.
// Comprueba identidad del emisor, comprador, detalles y la coherencia de
// totales. Los errores se acumulan y se devuelven envueltos en ErrEntradaInvalida.
func ValidarFactura(f *Factura) error {
	if f == nil {
		return fmt.Errorf("%w: factura nula", ErrEntradaInvalida)
	}
	var errs []error

	if !sri.RUCValido(f.Emisor.RUC) {
		errs = append(errs, fmt.Errorf("RUC del emisor inválido: %q", f.Emisor.RUC))
	}
	if f.Emisor.RazonSocial == "" {
		errs = append(errs, errors.New("razón social del emisor es obligatoria"))
	}
	if f.Emisor.DireccionMatriz == "" && f.Emisor.DireccionEstablecimiento == "" {
		errs = append(errs, errors.New("se requiere dirección de matriz o de establecimiento"))
	}
	if len(f.Emisor.CodigoEstablecimiento) != 3 || len(f.Emisor.PuntoEmision) != 3 {
		errs = append(errs, fmt.Errorf("establecimiento %q y punto de emisión %q deben tener 3 dígitos", f.Emisor.CodigoEstablecimiento, f.Emisor.PuntoEmision))
	}
	if !sri.AmbienteValido(f.Ambiente) {
		errs = append(errs, fmt.Errorf("ambiente inválido: %q", f.Ambiente))
	}
	if f.FechaEmision.IsZero() {
		errs = append(errs, errors.New("fecha de emisión es obligatoria"))
	}
	if !sri.TiposIdentificacionValidos[f.Comprador.TipoIdentificacion] {
		errs = append(errs, fmt.Errorf("tipo de identificación del comprador inválido: %q", f.Comprador.TipoIdentificacion))
	}
	if f.Comprador.Identificacion == "" {
		errs = append(errs, errors.New("identificación del comprador es obligatoria"))
	}
	if f.Comprador.RazonSocial == "" {
		errs = append(errs, errors.New("razón social del comprador es obligatoria"))
	}

	if len(f.Detalles) == 0 {
		errs = append(errs, errors.New("la factura debe tener al menos un detalle"))
	}
	for i, d := range f.Detalles {
		if d.Descripcion == "" {
			errs = append(errs, fmt.Errorf("detalle %d: descripción obligatoria", i+1))
		}
		if !d.Cantidad.IsPositive() {
			errs = append(errs, fmt.Errorf("detalle %d: cantidad debe ser positiva", i+1))
		}
		if d.PrecioUnitario.IsNegative() {
			errs = append(errs, fmt.Errorf("detalle %d: precio unitario no puede ser negativo", i+1))
		}
		// El precio total siempre se deriva; un valor almacenado que difiera en
		// más de un centavo delata una inconsistencia del origen que el SRI rechaza.
		if !d.PrecioTotalSinImpuesto.IsZero() {
			derivado := d.PrecioTotalDerivado()
			if d.PrecioTotalSinImpuesto.Sub(derivado).Abs().GreaterThan(toleranciaCentavo) {
				errs = append(errs, fmt.Errorf("detalle %d: precioTotalSinImpuesto almacenado (%s) difiere del derivado (%s) en más de un centavo",
					i+1, d.PrecioTotalSinImpuesto.StringFixed(2), derivado.StringFixed(2)))
			}
		}
	}

	// La base imponible de cada impuesto debe coincidir con el precio total
	// derivado de su línea (tolerancia de un centavo por redondeo del origen).
	for i, d := range f.Detalles {
		derivado := d.PrecioTotalDerivado()
		for _, imp := range d.Impuestos {
			if imp.BaseImponible.Sub(derivado).Abs().GreaterThan(toleranciaCentavo) {
				errs = append(errs, fmt.Errorf("detalle %d: base imponible (%s) no coincide con el precio total de la línea (%s)",
					i+1, imp.BaseImponible.StringFixed(2), derivado.StringFixed(2)))
			}
		}
	}

	if f.Propina.IsNegative() {
		errs = append(errs, errors.New("la propina no puede ser negativa"))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrEntradaInvalida}, errs...)...)
	}
	return nil
}

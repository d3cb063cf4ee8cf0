package comprobante_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
	"github.com/jhoicas/facturacion-sri/pkg/sri"
)

func facturaValida() *comprobante.Factura {
	return &comprobante.Factura{
		Emisor: comprobante.Emisor{
			RUC:                   "0918097783001",
			RazonSocial:           "COMERCIAL QUITO S.A.",
			DireccionMatriz:       "Av. Amazonas N34-451",
			CodigoEstablecimiento: "001",
			PuntoEmision:          "001",
			ObligadoContabilidad:  true,
		},
		Ambiente:     sri.AmbientePruebas,
		TipoEmision:  sri.EmisionNormal,
		Secuencial:   "1",
		FechaEmision: time.Date(2025, 8, 7, 10, 0, 0, 0, time.UTC),
		Comprador: comprobante.Comprador{
			TipoIdentificacion: sri.IdentConsumidorFinal,
			Identificacion:     "9999999999999",
			RazonSocial:        "CONSUMIDOR FINAL",
		},
		Detalles: []comprobante.Detalle{{
			CodigoPrincipal: "P001",
			Descripcion:     "Producto de prueba",
			Cantidad:        decimal.NewFromInt(1),
			PrecioUnitario:  decimal.NewFromFloat(10.00),
			Descuento:       decimal.Zero,
			Impuestos: []comprobante.Impuesto{{
				Codigo:           sri.ImpuestoIVA,
				CodigoPorcentaje: sri.TarifaIVA12,
				BaseImponible:    decimal.NewFromFloat(10.00),
				Valor:            decimal.NewFromFloat(1.20),
			}},
		}},
	}
}

func TestValidarFactura_OK(t *testing.T) {
	require.NoError(t, comprobante.ValidarFactura(facturaValida()))
}

func TestValidarFactura_Nula(t *testing.T) {
	err := comprobante.ValidarFactura(nil)
	assert.ErrorIs(t, err, comprobante.ErrEntradaInvalida)
}

func TestValidarFactura_Errores(t *testing.T) {
	casos := []struct {
		nombre string
		mutar  func(f *comprobante.Factura)
	}{
		{"RUC inválido", func(f *comprobante.Factura) { f.Emisor.RUC = "123" }},
		{"sin razón social", func(f *comprobante.Factura) { f.Emisor.RazonSocial = "" }},
		{"sin direcciones", func(f *comprobante.Factura) {
			f.Emisor.DireccionMatriz = ""
			f.Emisor.DireccionEstablecimiento = ""
		}},
		{"ambiente desconocido", func(f *comprobante.Factura) { f.Ambiente = "9" }},
		{"sin detalles", func(f *comprobante.Factura) { f.Detalles = nil }},
		{"cantidad cero", func(f *comprobante.Factura) { f.Detalles[0].Cantidad = decimal.Zero }},
		{"tipo identificación inválido", func(f *comprobante.Factura) { f.Comprador.TipoIdentificacion = "99" }},
		{"propina negativa", func(f *comprobante.Factura) { f.Propina = decimal.NewFromFloat(-1) }},
		{"base imponible incoherente", func(f *comprobante.Factura) {
			f.Detalles[0].Impuestos[0].BaseImponible = decimal.NewFromFloat(99.99)
		}},
	}
	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			f := facturaValida()
			c.mutar(f)
			err := comprobante.ValidarFactura(f)
			assert.ErrorIs(t, err, comprobante.ErrEntradaInvalida)
		})
	}
}

// El precio total siempre se deriva; el valor almacenado solo se acepta si
// difiere del derivado en a lo más un centavo.
func TestValidarFactura_PrecioTotalAlmacenado(t *testing.T) {
	f := facturaValida()
	f.Detalles[0].PrecioTotalSinImpuesto = decimal.NewFromFloat(10.01)
	assert.NoError(t, comprobante.ValidarFactura(f), "un centavo de diferencia se tolera")

	f.Detalles[0].PrecioTotalSinImpuesto = decimal.NewFromFloat(10.50)
	assert.Error(t, comprobante.ValidarFactura(f), "más de un centavo se rechaza")
}

func TestTotales(t *testing.T) {
	f := facturaValida()
	f.Propina = decimal.NewFromFloat(0.50)

	assert.True(t, f.TotalSinImpuestos().Equal(decimal.NewFromFloat(10.00)))
	assert.True(t, f.TotalImpuestos().Equal(decimal.NewFromFloat(1.20)))
	assert.True(t, f.ImporteTotal().Equal(decimal.NewFromFloat(11.70)))
}

func TestCategoria(t *testing.T) {
	assert.Equal(t, "certificado", comprobante.Categoria(comprobante.ErrCredencialInvalida))
	assert.Equal(t, "firma", comprobante.Categoria(comprobante.ErrFirma))
	assert.Equal(t, "firma", comprobante.Categoria(comprobante.ErrEsquemaInvalido))
	assert.Equal(t, "conectividad", comprobante.Categoria(comprobante.ErrTransporte))
	assert.Equal(t, "configuracion", comprobante.Categoria(comprobante.ErrAmbienteInvalido))
	assert.Equal(t, "interno", comprobante.Categoria(errors.New("otro")))
	assert.Equal(t, "", comprobante.Categoria(nil))
}

func TestEstado(t *testing.T) {
	assert.True(t, comprobante.EstadoAutorizado.Terminal())
	assert.True(t, comprobante.EstadoRechazado.Terminal())
	assert.True(t, comprobante.EstadoError.Terminal())
	assert.False(t, comprobante.EstadoEnProceso.Terminal())
	assert.False(t, comprobante.EstadoFirmado.Terminal())

	assert.False(t, comprobante.EstadoEnProceso.Persistible())
	assert.Equal(t, "autorizado", comprobante.EstadoAutorizado.Directorio())
	assert.Equal(t, "firmado", comprobante.EstadoFirmado.Directorio())
}

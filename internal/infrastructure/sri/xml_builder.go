// Package sri implementa la generación, firma y envío de comprobantes
// electrónicos al SRI (Ecuador): factura v1.1.0, servicios SOAP de recepción y
// autorización, y persistencia de artefactos por estado.
package sri

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
	pkgsri "github.com/jhoicas/facturacion-sri/pkg/sri"
)

// zonaEcuador es UTC-05 fijo (Ecuador continental no tiene horario de verano).
var zonaEcuador = time.FixedZone("America/Guayaquil", -5*3600)

const (
	versionFactura = "1.1.0"
	idComprobante  = "comprobante"
	encabezadoXML  = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
)

// XMLBuilderService construye el XML de la factura v1.1.0 (sin firma).
// La salida es determinista: el mismo registro y la misma clave producen
// exactamente los mismos bytes.
type XMLBuilderService struct {
	// Ahora reloj inyectable; nil = time.Now. Se usa para el clamp de la
	// fecha de emisión contra "ahora en Ecuador".
	Ahora func() time.Time
	// Tolerancia margen aceptado al comparar contra el reloj del sistema.
	Tolerancia time.Duration
	// AvisoFechaAjustada callback opcional para registrar el ajuste de fecha.
	AvisoFechaAjustada func(original, ajustada time.Time)
}

// NewXMLBuilderService crea el servicio con tolerancia de reloj dada.
func NewXMLBuilderService(tolerancia time.Duration) *XMLBuilderService {
	return &XMLBuilderService{Tolerancia: tolerancia}
}

// BuildFactura genera los bytes del comprobante <factura id="comprobante"
// version="1.1.0"> con la clave de acceso incrustada en infoTributaria.
func (s *XMLBuilderService) BuildFactura(f *comprobante.Factura, claveAcceso string) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: factura nula", comprobante.ErrEntradaInvalida)
	}
	if !pkgsri.ValidarClaveAcceso(claveAcceso) {
		return nil, fmt.Errorf("%w: clave de acceso inválida %q", comprobante.ErrEntradaInvalida, claveAcceso)
	}

	dirEstablecimiento := f.Emisor.DireccionEstablecimiento
	if dirEstablecimiento == "" {
		dirEstablecimiento = f.Emisor.DireccionMatriz
	}
	if dirEstablecimiento == "" {
		return nil, fmt.Errorf("%w: dirEstablecimiento requiere dirección de establecimiento o matriz", comprobante.ErrEntradaInvalida)
	}

	fecha := s.ajustarFecha(f.FechaEmision)

	var buf bytes.Buffer
	buf.WriteString(encabezadoXML)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "factura"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "id"}, Value: idComprobante},
			{Name: xml.Name{Local: "version"}, Value: versionFactura},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	s.writeInfoTributaria(enc, f, claveAcceso)
	s.writeInfoFactura(enc, f, fecha, dirEstablecimiento)
	s.writeDetalles(enc, f)
	s.writeInfoAdicional(enc, f)

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// BuildNotaCredito está diferido: la clave de acceso tipo 04 se genera, pero
// el cuerpo XML de la nota de crédito aún no se emite.
func (s *XMLBuilderService) BuildNotaCredito(_ *comprobante.Factura, _ string) ([]byte, error) {
	return nil, fmt.Errorf("%w: nota de crédito", comprobante.ErrNoSoportado)
}

// FechaAjustada expone el ajuste de fecha para que la clave de acceso y el
// fechaEmision del XML se generen con la misma fecha.
func (s *XMLBuilderService) FechaAjustada(fecha time.Time) time.Time {
	return s.ajustarFecha(fecha)
}

// ajustarFecha aplica el clamp: una fecha posterior a "ahora en Ecuador" más
// la tolerancia se sustituye por ahora-en-Ecuador.
func (s *XMLBuilderService) ajustarFecha(fecha time.Time) time.Time {
	ahora := time.Now
	if s.Ahora != nil {
		ahora = s.Ahora
	}
	ahoraEC := ahora().In(zonaEcuador)
	fechaEC := fecha.In(zonaEcuador)
	if fechaEC.After(ahoraEC.Add(s.Tolerancia)) {
		if s.AvisoFechaAjustada != nil {
			s.AvisoFechaAjustada(fechaEC, ahoraEC)
		}
		return ahoraEC
	}
	return fechaEC
}

func (s *XMLBuilderService) writeInfoTributaria(enc *xml.Encoder, f *comprobante.Factura, clave string) {
	abrir(enc, "infoTributaria")
	escribir(enc, "ambiente", f.Ambiente)
	tipoEmision := f.TipoEmision
	if tipoEmision == "" {
		tipoEmision = pkgsri.EmisionNormal
	}
	escribir(enc, "tipoEmision", tipoEmision)
	escribir(enc, "razonSocial", SanitizarTexto(f.Emisor.RazonSocial))
	if f.Emisor.NombreComercial != "" {
		escribir(enc, "nombreComercial", SanitizarTexto(f.Emisor.NombreComercial))
	}
	escribir(enc, "ruc", f.Emisor.RUC)
	escribir(enc, "claveAcceso", clave)
	escribir(enc, "codDoc", pkgsri.DocTipoFactura)
	escribir(enc, "estab", f.Emisor.CodigoEstablecimiento)
	escribir(enc, "ptoEmi", f.Emisor.PuntoEmision)
	escribir(enc, "secuencial", rellenarSecuencial(f.Secuencial))
	escribir(enc, "dirMatriz", SanitizarTexto(f.Emisor.DireccionMatriz))
	cerrar(enc, "infoTributaria")
}

func (s *XMLBuilderService) writeInfoFactura(enc *xml.Encoder, f *comprobante.Factura, fecha time.Time, dirEstablecimiento string) {
	abrir(enc, "infoFactura")
	escribir(enc, "fechaEmision", fecha.Format("02/01/2006"))
	escribir(enc, "dirEstablecimiento", SanitizarTexto(dirEstablecimiento))
	obligado := pkgsri.ObligadoContabilidadNO
	if f.Emisor.ObligadoContabilidad {
		obligado = pkgsri.ObligadoContabilidadSI
	}
	escribir(enc, "obligadoContabilidad", obligado)
	escribir(enc, "tipoIdentificacionComprador", f.Comprador.TipoIdentificacion)
	escribir(enc, "razonSocialComprador", SanitizarTexto(f.Comprador.RazonSocial))
	escribir(enc, "identificacionComprador", f.Comprador.Identificacion)
	if f.Comprador.Direccion != "" {
		escribir(enc, "direccionComprador", SanitizarTexto(f.Comprador.Direccion))
	}
	escribir(enc, "totalSinImpuestos", montos(f.TotalSinImpuestos()))
	escribir(enc, "totalDescuento", montos(f.TotalDescuento()))

	// totalConImpuestos agrupa por (código, códigoPorcentaje) en orden de
	// primera aparición para mantener la salida determinista.
	abrir(enc, "totalConImpuestos")
	for _, g := range agruparImpuestos(f) {
		abrir(enc, "totalImpuesto")
		escribir(enc, "codigo", g.codigo)
		escribir(enc, "codigoPorcentaje", g.codigoPorcentaje)
		escribir(enc, "baseImponible", montos(g.base))
		escribir(enc, "valor", montos(g.valor))
		cerrar(enc, "totalImpuesto")
	}
	cerrar(enc, "totalConImpuestos")

	escribir(enc, "propina", montos(f.Propina))
	escribir(enc, "importeTotal", montos(f.ImporteTotal()))
	moneda := f.Moneda
	if moneda == "" {
		moneda = pkgsri.Moneda
	}
	escribir(enc, "moneda", moneda)

	// Sin pagos explícitos se sintetiza {formaPago=01, total=importeTotal}.
	pagos := f.Pagos
	if len(pagos) == 0 {
		pagos = []comprobante.Pago{{
			FormaPago: pkgsri.FormaPagoSinSistemaFinanciero,
			Total:     f.ImporteTotal(),
		}}
	}
	abrir(enc, "pagos")
	for _, p := range pagos {
		abrir(enc, "pago")
		escribir(enc, "formaPago", p.FormaPago)
		escribir(enc, "total", montos(p.Total))
		cerrar(enc, "pago")
	}
	cerrar(enc, "pagos")
	cerrar(enc, "infoFactura")
}

func (s *XMLBuilderService) writeDetalles(enc *xml.Encoder, f *comprobante.Factura) {
	abrir(enc, "detalles")
	for _, d := range f.Detalles {
		abrir(enc, "detalle")
		if d.CodigoPrincipal != "" {
			escribir(enc, "codigoPrincipal", SanitizarTexto(d.CodigoPrincipal))
		}
		escribir(enc, "descripcion", SanitizarTexto(d.Descripcion))
		escribir(enc, "cantidad", montos(d.Cantidad))
		escribir(enc, "precioUnitario", montos(d.PrecioUnitario))
		escribir(enc, "descuento", montos(d.Descuento))
		escribir(enc, "precioTotalSinImpuesto", montos(d.PrecioTotalDerivado()))
		abrir(enc, "impuestos")
		for _, imp := range d.Impuestos {
			abrir(enc, "impuesto")
			escribir(enc, "codigo", imp.Codigo)
			escribir(enc, "codigoPorcentaje", imp.CodigoPorcentaje)
			escribir(enc, "tarifa", montos(tarifaImpuesto(imp)))
			escribir(enc, "baseImponible", montos(imp.BaseImponible))
			escribir(enc, "valor", montos(imp.Valor))
			cerrar(enc, "impuesto")
		}
		cerrar(enc, "impuestos")
		cerrar(enc, "detalle")
	}
	cerrar(enc, "detalles")
}

func (s *XMLBuilderService) writeInfoAdicional(enc *xml.Encoder, f *comprobante.Factura) {
	campos := make([]comprobante.CampoAdicional, 0, len(f.InfoAdicional)+2)
	campos = append(campos, f.InfoAdicional...)
	if f.Comprador.Email != "" {
		campos = append(campos, comprobante.CampoAdicional{Nombre: "email", Valor: f.Comprador.Email})
	}
	if f.Comprador.Telefono != "" {
		campos = append(campos, comprobante.CampoAdicional{Nombre: "telefono", Valor: f.Comprador.Telefono})
	}
	if len(campos) == 0 {
		return
	}
	abrir(enc, "infoAdicional")
	for _, c := range campos {
		_ = enc.EncodeToken(xml.StartElement{
			Name: xml.Name{Local: "campoAdicional"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "nombre"}, Value: SanitizarTexto(c.Nombre)}},
		})
		_ = enc.EncodeToken(xml.CharData(SanitizarTexto(c.Valor)))
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "campoAdicional"}})
	}
	cerrar(enc, "infoAdicional")
}

// ── agregación de impuestos ───────────────────────────────────────────────────

type grupoImpuesto struct {
	codigo           string
	codigoPorcentaje string
	base             decimal.Decimal
	valor            decimal.Decimal
}

func agruparImpuestos(f *comprobante.Factura) []grupoImpuesto {
	var orden []string
	grupos := map[string]*grupoImpuesto{}
	for _, d := range f.Detalles {
		for _, imp := range d.Impuestos {
			k := imp.Codigo + "|" + imp.CodigoPorcentaje
			g, ok := grupos[k]
			if !ok {
				g = &grupoImpuesto{codigo: imp.Codigo, codigoPorcentaje: imp.CodigoPorcentaje}
				grupos[k] = g
				orden = append(orden, k)
			}
			g.base = g.base.Add(imp.BaseImponible)
			g.valor = g.valor.Add(imp.Valor)
		}
	}
	out := make([]grupoImpuesto, 0, len(orden))
	for _, k := range orden {
		out = append(out, *grupos[k])
	}
	return out
}

// tarifaImpuesto deriva la tarifa del código de porcentaje cuando el registro
// no la trae explícita: 2→12.00, 3→14.00, 8→15.00, resto 0.00.
func tarifaImpuesto(imp comprobante.Impuesto) decimal.Decimal {
	if !imp.Tarifa.IsZero() {
		return imp.Tarifa
	}
	switch imp.CodigoPorcentaje {
	case pkgsri.TarifaIVA12:
		return decimal.NewFromInt(12)
	case pkgsri.TarifaIVA14:
		return decimal.NewFromInt(14)
	case pkgsri.TarifaIVA15:
		return decimal.NewFromInt(15)
	default:
		return decimal.Zero
	}
}

// ── helpers de serialización ──────────────────────────────────────────────────

func abrir(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
}

func cerrar(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func escribir(enc *xml.Encoder, local, valor string) {
	abrir(enc, local)
	_ = enc.EncodeToken(xml.CharData(valor))
	cerrar(enc, local)
}

// montos formatea cantidades y valores monetarios con dos decimales fijos.
func montos(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func rellenarSecuencial(s string) string {
	for len(s) < 9 {
		s = "0" + s
	}
	return s
}

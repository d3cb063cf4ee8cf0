// Package sri contiene catálogos y algoritmos puros de facturación electrónica
// SRI (Ecuador) según la Ficha Técnica de Comprobantes Electrónicos (esquema
// offline, factura v1.1.0).
package sri

// =============================================================================
// Tabla 4 - Ambiente
// =============================================================================

const (
	AmbientePruebas    = "1" // Certificación / pruebas (celcer.sri.gob.ec)
	AmbienteProduccion = "2" // Producción (cel.sri.gob.ec)
)

// AmbienteValido indica si el código de ambiente es reconocido por el SRI.
func AmbienteValido(ambiente string) bool {
	return ambiente == AmbientePruebas || ambiente == AmbienteProduccion
}

// =============================================================================
// Tabla 2 - Tipo de emisión
// =============================================================================

const (
	EmisionNormal = "1" // Emisión normal (único tipo vigente en el esquema offline)
)

// =============================================================================
// Tabla 3 - Tipos de comprobante
// =============================================================================

const (
	DocTipoFactura          = "01"
	DocTipoNotaCredito      = "04"
	DocTipoNotaDebito       = "05"
	DocTipoGuiaRemision     = "06"
	DocTipoRetencion        = "07"
)

// TiposComprobanteValidos códigos de comprobante aceptados en la clave de acceso.
var TiposComprobanteValidos = map[string]bool{
	DocTipoFactura:      true,
	DocTipoNotaCredito:  true,
	DocTipoNotaDebito:   true,
	DocTipoGuiaRemision: true,
	DocTipoRetencion:    true,
}

// =============================================================================
// Tabla 6 - Tipos de identificación del comprador
// =============================================================================

const (
	IdentRUC              = "04"
	IdentCedula           = "05"
	IdentPasaporte        = "06"
	IdentConsumidorFinal  = "07"
)

// IdentificacionConsumidorFinal es la identificación fija para ventas a consumidor final.
const IdentificacionConsumidorFinal = "9999999999999"

// TiposIdentificacionValidos códigos de identificación del comprador admitidos.
var TiposIdentificacionValidos = map[string]bool{
	IdentRUC: true, IdentCedula: true, IdentPasaporte: true, IdentConsumidorFinal: true,
}

// =============================================================================
// Tabla 24 - Formas de pago
// =============================================================================

const (
	FormaPagoSinSistemaFinanciero = "01" // Sin utilización del sistema financiero
	FormaPagoTarjetaDebito        = "16"
	FormaPagoDineroElectronico    = "17"
	FormaPagoTarjetaPrepago       = "18"
	FormaPagoTarjetaCredito       = "19"
	FormaPagoOtros                = "20" // Otros con utilización del sistema financiero
)

// =============================================================================
// Tablas 16/17 - Impuestos y códigos de porcentaje IVA
// =============================================================================

const (
	ImpuestoIVA    = "2"
	ImpuestoICE    = "3"
	ImpuestoIRBPNR = "5"
)

const (
	TarifaIVA0        = "0"
	TarifaIVA12       = "2"
	TarifaIVA14       = "3"
	TarifaNoObjeto    = "6"
	TarifaExento      = "7"
	TarifaIVA15       = "8"
)

// =============================================================================
// Constantes de infoFactura
// =============================================================================

const (
	Moneda                   = "DOLAR"
	ObligadoContabilidadSI   = "SI"
	ObligadoContabilidadNO   = "NO"
)

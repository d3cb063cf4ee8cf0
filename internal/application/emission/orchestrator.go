package emission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
	pkgsri "github.com/jhoicas/facturacion-sri/pkg/sri"
)

// Orquestador ejecuta el ciclo completo de emisión de un comprobante:
//
//	validar → clave de acceso → XML → firma → FIRMADO → recepción → RECIBIDO
//	→ autorización → AUTORIZADO | RECHAZADO | ERROR
//
// Contrato de errores: los fallos previos al protocolo (entrada, credencial,
// esquema, firma) se devuelven como error y no dejan artefacto terminal. A
// partir de FIRMADO el desenlace SIEMPRE es un ResultadoFinal (un RECHAZADO
// del SRI es un resultado válido, no un error de proceso); la excepción es la
// cancelación del contexto, que corta sin persistir estado terminal.
type Orquestador struct {
	builder  ConstructorXML
	firmador Firmador
	cliente  ClienteSRI
	almacen  Almacen
	log      zerolog.Logger

	// EsperaAutorizacion pausa entre la recepción y el primer sondeo de
	// autorización. El SRI casi nunca autoriza de inmediato: sondear sin
	// esperar quema un intento del presupuesto en un EN PROCESO seguro.
	EsperaAutorizacion time.Duration
}

// NewOrquestador construye el orquestador con todas sus dependencias.
func NewOrquestador(builder ConstructorXML, firmador Firmador, cliente ClienteSRI, almacen Almacen, log zerolog.Logger) *Orquestador {
	return &Orquestador{
		builder:  builder,
		firmador: firmador,
		cliente:  cliente,
		almacen:  almacen,
		log:      log,
	}
}

// ProcesarFactura emite la factura de punta a punta.
func (o *Orquestador) ProcesarFactura(ctx context.Context, f *comprobante.Factura) (*comprobante.ResultadoFinal, error) {
	return o.procesar(ctx, f, pkgsri.DocTipoFactura)
}

// ProcesarNotaCredito emite una nota de crédito. La clave tipo 04 se genera,
// pero el cuerpo del comprobante aún no está soportado.
func (o *Orquestador) ProcesarNotaCredito(ctx context.Context, f *comprobante.Factura) (*comprobante.ResultadoFinal, error) {
	return o.procesar(ctx, f, pkgsri.DocTipoNotaCredito)
}

func (o *Orquestador) procesar(ctx context.Context, f *comprobante.Factura, tipoDoc string) (*comprobante.ResultadoFinal, error) {
	if err := comprobante.ValidarFactura(f); err != nil {
		return nil, err
	}

	// La clave y el fechaEmision del XML deben salir de la misma fecha, ya
	// ajustada contra el reloj.
	registro := *f
	registro.FechaEmision = o.builder.FechaAjustada(f.FechaEmision)

	clave, err := pkgsri.GenerarClaveAcceso(pkgsri.ClaveAccesoParams{
		FechaEmision:    registro.FechaEmision,
		TipoComprobante: tipoDoc,
		RUC:             registro.Emisor.RUC,
		Ambiente:        registro.Ambiente,
		Serie:           registro.Emisor.Serie(),
		Secuencial:      registro.Secuencial,
		TipoEmision:     registro.TipoEmision,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", comprobante.ErrEntradaInvalida, err)
	}

	log := o.log.With().
		Str("run", uuid.NewString()).
		Str("clave", clave).
		Str("secuencial", registro.Secuencial).
		Logger()
	log.Info().Str("tipo", tipoDoc).Msg("iniciando emisión")

	var xmlBytes []byte
	switch tipoDoc {
	case pkgsri.DocTipoFactura:
		xmlBytes, err = o.builder.BuildFactura(&registro, clave)
	case pkgsri.DocTipoNotaCredito:
		xmlBytes, err = o.builder.BuildNotaCredito(&registro, clave)
	default:
		err = fmt.Errorf("%w: tipo %s", comprobante.ErrNoSoportado, tipoDoc)
	}
	if err != nil {
		return nil, err
	}

	doc, err := o.firmador.Firmar(xmlBytes)
	if err != nil {
		log.Error().Err(err).Str("categoria", comprobante.Categoria(err)).Msg("firma fallida")
		return nil, err
	}
	o.guardar(log, comprobante.EstadoFirmado, clave, doc.XML)

	// ── Recepción ─────────────────────────────────────────────────────────
	recepcion, err := o.cliente.EnviarRecepcion(ctx, doc.XML)
	if err != nil {
		return o.desenlacePorError(ctx, log, clave, doc.XML, "recepción", err)
	}
	if recepcion.Estado == comprobante.RecepcionDevuelta {
		o.guardar(log, comprobante.EstadoRechazado, clave, doc.XML)
		log.Warn().Msg("comprobante devuelto en recepción")
		return &comprobante.ResultadoFinal{
			ClaveAcceso: clave,
			Estado:      comprobante.EstadoRechazado,
			Mensajes:    recepcion.Mensajes,
		}, nil
	}
	o.guardar(log, comprobante.EstadoRecibido, clave, doc.XML)
	log.Info().Msg("comprobante recibido por el SRI")

	// ── Autorización ──────────────────────────────────────────────────────
	if o.EsperaAutorizacion > 0 {
		if err := esperar(ctx, o.EsperaAutorizacion); err != nil {
			log.Warn().Err(err).Msg("emisión cancelada esperando la autorización")
			return nil, err
		}
	}
	aut, err := o.cliente.ConsultarAutorizacion(ctx, clave)
	if err != nil {
		if aut != nil && aut.Estado == comprobante.EstadoEnProceso {
			// Presupuesto de sondeo agotado: el comprobante sigue en cola del
			// SRI. No es terminal; se puede re-consultar con la clave.
			log.Warn().Err(err).Msg("autorización aún en proceso")
			return &comprobante.ResultadoFinal{
				ClaveAcceso: clave,
				Estado:      comprobante.EstadoEnProceso,
				Mensajes:    aut.Mensajes,
			}, nil
		}
		return o.desenlacePorError(ctx, log, clave, doc.XML, "autorización", err)
	}

	// El SRI devuelve el comprobante con su bloque de autorización; si no
	// viene, se archiva el firmado.
	artefacto := doc.XML
	if len(aut.ComprobanteXML) > 0 {
		artefacto = aut.ComprobanteXML
	}
	o.guardar(log, aut.Estado, clave, artefacto)

	resultado := &comprobante.ResultadoFinal{
		ClaveAcceso:        clave,
		Estado:             aut.Estado,
		NumeroAutorizacion: aut.NumeroAutorizacion,
		Mensajes:           aut.Mensajes,
		Exito:              aut.Estado == comprobante.EstadoAutorizado,
	}
	if resultado.Exito {
		log.Info().Str("autorizacion", aut.NumeroAutorizacion).Msg("comprobante autorizado")
	} else {
		log.Warn().Str("estado", string(aut.Estado)).Msg("comprobante no autorizado")
	}
	return resultado, nil
}

// Consultar busca la autorización registrada en el SRI para una clave.
func (o *Orquestador) Consultar(ctx context.Context, clave string) (*comprobante.RegistroAutorizacion, error) {
	return o.cliente.BuscarAutorizacion(ctx, clave)
}

// desenlacePorError cierra el ciclo tras un fallo de protocolo posterior a la
// firma. La cancelación corta sin persistir estado terminal; el resto se
// archiva como ERROR y se devuelve como resultado, no como error.
func (o *Orquestador) desenlacePorError(ctx context.Context, log zerolog.Logger, clave string, xml []byte, etapa string, err error) (*comprobante.ResultadoFinal, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		log.Warn().Err(err).Str("etapa", etapa).Msg("emisión cancelada")
		return nil, err
	}
	log.Error().Err(err).Str("etapa", etapa).Str("categoria", comprobante.Categoria(err)).Msg("fallo en protocolo SRI")
	o.guardar(log, comprobante.EstadoError, clave, xml)
	return &comprobante.ResultadoFinal{
		ClaveAcceso: clave,
		Estado:      comprobante.EstadoError,
		Mensajes: []comprobante.Mensaje{{
			Identificador:        "INTERNO",
			Mensaje:              fmt.Sprintf("fallo en %s: %v", etapa, err),
			InformacionAdicional: comprobante.Categoria(err),
			Tipo:                 "ERROR",
		}},
	}, nil
}

// esperar duerme respetando la cancelación del contexto.
func esperar(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// guardar persiste el artefacto de la transición. Un fallo de disco no aborta
// la emisión: se registra y el ciclo continúa.
func (o *Orquestador) guardar(log zerolog.Logger, estado comprobante.Estado, clave string, xml []byte) {
	ruta, err := o.almacen.Guardar(estado, clave, xml)
	if err != nil {
		log.Error().Err(err).Str("estado", string(estado)).Msg("no se pudo persistir el artefacto")
		return
	}
	log.Debug().Str("estado", string(estado)).Str("ruta", ruta).Msg("artefacto persistido")
}

// Cliente SOAP de los web services de comprobantes offline del SRI, con
// reintentos acotados ante fallos transitorios.

package sri

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
	pkgsri "github.com/jhoicas/facturacion-sri/pkg/sri"
)

const (
	urlRecepcionPruebas       = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	urlAutorizacionPruebas    = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"
	urlRecepcionProduccion    = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	urlAutorizacionProduccion = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"

	// tiempoMaximoLlamada acota cada llamada individual; los reintentos se
	// acotan aparte con PoliticaReintento.
	tiempoMaximoLlamada = 30 * time.Second
)

// ClienteSOAP habla con RecepcionComprobantesOffline y
// AutorizacionComprobantesOffline. Usa net/http de la stdlib: los WS del SRI
// son SOAP 1.1 plano y no ameritan un stack WSDL.
type ClienteSOAP struct {
	urlRecepcion    string
	urlAutorizacion string
	httpClient      *http.Client
	log             zerolog.Logger

	PoliticaEnvio    comprobante.PoliticaReintento // validarComprobante
	PoliticaConsulta comprobante.PoliticaReintento // sondeo post-recepción
	PoliticaBusqueda comprobante.PoliticaReintento // consulta puntual por clave
}

// NewClienteSOAP construye el cliente para el ambiente dado (1 pruebas,
// 2 producción).
func NewClienteSOAP(ambiente string, log zerolog.Logger) (*ClienteSOAP, error) {
	switch ambiente {
	case pkgsri.AmbientePruebas:
		return newClienteSOAP(urlRecepcionPruebas, urlAutorizacionPruebas, log), nil
	case pkgsri.AmbienteProduccion:
		return newClienteSOAP(urlRecepcionProduccion, urlAutorizacionProduccion, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", comprobante.ErrAmbienteInvalido, ambiente)
	}
}

// NewClienteSOAPConURLs construye el cliente contra endpoints arbitrarios
// (tests con httptest).
func NewClienteSOAPConURLs(urlRecepcion, urlAutorizacion string, log zerolog.Logger) *ClienteSOAP {
	return newClienteSOAP(urlRecepcion, urlAutorizacion, log)
}

func newClienteSOAP(urlRecepcion, urlAutorizacion string, log zerolog.Logger) *ClienteSOAP {
	return &ClienteSOAP{
		urlRecepcion:    urlRecepcion,
		urlAutorizacion: urlAutorizacion,
		httpClient:      &http.Client{Timeout: tiempoMaximoLlamada},
		log:             log,
		PoliticaEnvio:    comprobante.PoliticaReintento{MaxIntentos: 3, Espera: 3 * time.Second},
		PoliticaConsulta: comprobante.PoliticaReintento{MaxIntentos: 5, Espera: 3 * time.Second},
		PoliticaBusqueda: comprobante.PoliticaReintento{MaxIntentos: 2, Espera: 2 * time.Second},
	}
}

// ── Recepción ─────────────────────────────────────────────────────────────────

// EnviarRecepcion entrega el comprobante firmado a validarComprobante.
// Reintenta solo ante fallos transitorios (transporte o mensajes del SRI de
// timeout/conexión/servicio); una DEVUELTA por contenido se devuelve tal cual.
func (c *ClienteSOAP) EnviarRecepcion(ctx context.Context, xmlFirmado []byte) (*comprobante.ResultadoRecepcion, error) {
	cuerpo := &validarComprobanteBody{XML: base64.StdEncoding.EncodeToString(xmlFirmado)}

	var ultimo error
	for intento := 1; intento <= c.PoliticaEnvio.MaxIntentos; intento++ {
		raw, err := c.llamar(ctx, c.urlRecepcion, nsRecepcion, cuerpo)
		if err != nil {
			ultimo = err
			if !comprobante.Reintentable(err) {
				return nil, err
			}
			c.log.Warn().Int("intento", intento).Err(err).Msg("recepción SRI falló, reintentando")
			if err := esperar(ctx, c.PoliticaEnvio.Espera); err != nil {
				return nil, err
			}
			continue
		}

		resultado, err := parsearRecepcion(raw)
		if err != nil {
			return nil, err
		}
		if resultado.Estado == comprobante.RecepcionDevuelta && mensajesTransitorios(resultado.Mensajes) {
			ultimo = fmt.Errorf("%w: %s", comprobante.ErrSriTemporal, resumenMensajes(resultado.Mensajes))
			c.log.Warn().Int("intento", intento).Msg("recepción devuelta por condición transitoria del SRI")
			if err := esperar(ctx, c.PoliticaEnvio.Espera); err != nil {
				return nil, err
			}
			continue
		}
		return resultado, nil
	}
	return nil, fmt.Errorf("recepción agotó %d intentos: %w", c.PoliticaEnvio.MaxIntentos, ultimo)
}

// ── Autorización ──────────────────────────────────────────────────────────────

// ConsultarAutorizacion sondea autorizacionComprobante hasta obtener un estado
// terminal. EN PROCESO (o respuesta sin autorizaciones) cuenta como intento y
// se reintenta; agotado el presupuesto se devuelve el último registro junto a
// ErrSriTemporal para que el orquestador lo trate como pendiente.
func (c *ClienteSOAP) ConsultarAutorizacion(ctx context.Context, clave string) (*comprobante.RegistroAutorizacion, error) {
	return c.consultar(ctx, clave, c.PoliticaConsulta, true)
}

// BuscarAutorizacion consulta puntual por clave (operación de lectura).
// Sin autorizaciones registradas devuelve ErrNoEncontrado.
func (c *ClienteSOAP) BuscarAutorizacion(ctx context.Context, clave string) (*comprobante.RegistroAutorizacion, error) {
	return c.consultar(ctx, clave, c.PoliticaBusqueda, false)
}

func (c *ClienteSOAP) consultar(ctx context.Context, clave string, politica comprobante.PoliticaReintento, sondeo bool) (*comprobante.RegistroAutorizacion, error) {
	if !pkgsri.ValidarClaveAcceso(clave) {
		return nil, fmt.Errorf("%w: clave de acceso inválida %q", comprobante.ErrEntradaInvalida, clave)
	}
	cuerpo := &autorizacionComprobanteBody{Clave: clave}

	var pendiente *comprobante.RegistroAutorizacion
	var ultimo error
	for intento := 1; intento <= politica.MaxIntentos; intento++ {
		raw, err := c.llamar(ctx, c.urlAutorizacion, nsAutorizacion, cuerpo)
		if err != nil {
			ultimo = err
			if !comprobante.Reintentable(err) {
				return nil, err
			}
			c.log.Warn().Int("intento", intento).Str("clave", clave).Err(err).Msg("consulta de autorización falló, reintentando")
			if err := esperar(ctx, politica.Espera); err != nil {
				return nil, err
			}
			continue
		}

		registro, err := parsearAutorizacion(raw)
		if err != nil {
			return nil, err
		}
		if registro == nil {
			// Sin autorizaciones: en sondeo es "aún en proceso"; en consulta
			// puntual, no existe.
			if !sondeo {
				return nil, fmt.Errorf("%w: clave %s sin autorizaciones", comprobante.ErrNoEncontrado, clave)
			}
			pendiente = &comprobante.RegistroAutorizacion{Estado: comprobante.EstadoEnProceso}
			ultimo = fmt.Errorf("%w: sin autorizaciones registradas", comprobante.ErrSriTemporal)
		} else if registro.Estado == comprobante.EstadoEnProceso {
			pendiente = registro
			ultimo = fmt.Errorf("%w: comprobante en proceso", comprobante.ErrSriTemporal)
		} else {
			return registro, nil
		}

		if intento < politica.MaxIntentos {
			if err := esperar(ctx, politica.Espera); err != nil {
				return nil, err
			}
		}
	}
	return pendiente, fmt.Errorf("autorización agotó %d intentos: %w", politica.MaxIntentos, ultimo)
}

// ── Transporte ────────────────────────────────────────────────────────────────

func (c *ClienteSOAP) llamar(ctx context.Context, url, ns string, cuerpo interface{}) ([]byte, error) {
	sobre := sobreSOAP{
		XmlnsEnv: nsSOAP,
		XmlnsEC:  ns,
		Body:     cuerpoSOAP{Contenido: cuerpo},
	}
	payload, err := xml.Marshal(sobre)
	if err != nil {
		return nil, fmt.Errorf("serializar sobre SOAP: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, tiempoMaximoLlamada)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", comprobante.ErrTransporte, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // max 4 MB (el XML autorizado viaja embebido)
	if err != nil {
		return nil, fmt.Errorf("%w: leer respuesta: %v", comprobante.ErrTransporte, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: HTTP %d del SRI", comprobante.ErrTransporte, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", comprobante.ErrProtocoloSri, resp.StatusCode, recortar(raw))
	}
	return raw, nil
}

func parsearRecepcion(raw []byte) (*comprobante.ResultadoRecepcion, error) {
	var sobre sobreRespuesta
	if err := xml.Unmarshal(raw, &sobre); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", comprobante.ErrProtocoloSri, err, recortar(raw))
	}
	if sobre.Body.Fault != nil {
		return nil, errorDeFault(sobre.Body.Fault)
	}
	if sobre.Body.Recepcion == nil {
		return nil, fmt.Errorf("%w: respuesta de recepción vacía: %s", comprobante.ErrProtocoloSri, recortar(raw))
	}
	r := sobre.Body.Recepcion.Respuesta

	var mensajes []comprobante.Mensaje
	for _, cmp := range r.Comprobantes {
		mensajes = append(mensajes, convertirMensajes(cmp.Mensajes)...)
	}
	switch r.Estado {
	case string(comprobante.RecepcionRecibida):
		return &comprobante.ResultadoRecepcion{Estado: comprobante.RecepcionRecibida, Mensajes: mensajes}, nil
	case string(comprobante.RecepcionDevuelta):
		return &comprobante.ResultadoRecepcion{Estado: comprobante.RecepcionDevuelta, Mensajes: mensajes}, nil
	default:
		return nil, fmt.Errorf("%w: estado de recepción desconocido %q", comprobante.ErrProtocoloSri, r.Estado)
	}
}

// parsearAutorizacion devuelve nil sin error cuando el SRI aún no registra
// autorizaciones para la clave.
func parsearAutorizacion(raw []byte) (*comprobante.RegistroAutorizacion, error) {
	var sobre sobreRespuesta
	if err := xml.Unmarshal(raw, &sobre); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", comprobante.ErrProtocoloSri, err, recortar(raw))
	}
	if sobre.Body.Fault != nil {
		return nil, errorDeFault(sobre.Body.Fault)
	}
	if sobre.Body.Autorizacion == nil {
		return nil, fmt.Errorf("%w: respuesta de autorización vacía: %s", comprobante.ErrProtocoloSri, recortar(raw))
	}
	auts := sobre.Body.Autorizacion.Respuesta.Autorizaciones
	if len(auts) == 0 {
		return nil, nil
	}
	// El SRI devuelve la autorización más reciente primero.
	a := auts[0]

	registro := &comprobante.RegistroAutorizacion{
		Estado:             mapearEstadoAutorizacion(a.Estado),
		NumeroAutorizacion: a.NumeroAutorizacion,
		Mensajes:           convertirMensajes(a.Mensajes),
	}
	if a.Comprobante != "" {
		registro.ComprobanteXML = []byte(a.Comprobante)
	}
	if a.FechaAutorizacion != "" {
		if t, err := time.Parse(time.RFC3339, a.FechaAutorizacion); err == nil {
			registro.FechaAutorizacion = t
		}
	}
	return registro, nil
}

func mapearEstadoAutorizacion(estado string) comprobante.Estado {
	switch strings.ToUpper(strings.TrimSpace(estado)) {
	case "AUTORIZADO":
		return comprobante.EstadoAutorizado
	case "NO AUTORIZADO", "RECHAZADO":
		return comprobante.EstadoRechazado
	case "EN PROCESO", "EN_PROCESO", "PPR":
		return comprobante.EstadoEnProceso
	default:
		return comprobante.EstadoError
	}
}

// errorDeFault clasifica un SOAP Fault: los de infraestructura del SRI son
// transitorios, el resto son de protocolo.
func errorDeFault(f *fallaSOAP) error {
	if esTransitorio(f.Detalle) {
		return fmt.Errorf("%w: fault [%s]: %s", comprobante.ErrSriTemporal, f.Codigo, f.Detalle)
	}
	return fmt.Errorf("%w: fault [%s]: %s", comprobante.ErrProtocoloSri, f.Codigo, f.Detalle)
}

func convertirMensajes(ms []mensajeSRI) []comprobante.Mensaje {
	if len(ms) == 0 {
		return nil
	}
	out := make([]comprobante.Mensaje, 0, len(ms))
	for _, m := range ms {
		out = append(out, comprobante.Mensaje{
			Identificador:        m.Identificador,
			Mensaje:              m.Mensaje,
			InformacionAdicional: m.InformacionAdicional,
			Tipo:                 m.Tipo,
		})
	}
	return out
}

// mensajesTransitorios detecta DEVUELTAs por condiciones de plataforma del SRI
// (timeout, conexión, servicio no disponible) que ameritan reintento.
func mensajesTransitorios(ms []comprobante.Mensaje) bool {
	for _, m := range ms {
		if esTransitorio(m.Identificador) || esTransitorio(m.Mensaje) || esTransitorio(m.InformacionAdicional) {
			return true
		}
	}
	return false
}

func esTransitorio(s string) bool {
	u := strings.ToUpper(s)
	return strings.Contains(u, "TIMEOUT") ||
		strings.Contains(u, "CONEXION") ||
		strings.Contains(u, "CONEXIÓN") ||
		strings.Contains(u, "SERVICIO")
}

func resumenMensajes(ms []comprobante.Mensaje) string {
	partes := make([]string, 0, len(ms))
	for _, m := range ms {
		partes = append(partes, fmt.Sprintf("[%s] %s", m.Identificador, m.Mensaje))
	}
	return strings.Join(partes, "; ")
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

func recortar(raw []byte) string {
	const max = 512
	if len(raw) > max {
		return string(raw[:max]) + "…"
	}
	return string(raw)
}

// Estructuras del protocolo SOAP de los servicios de comprobantes offline del
// SRI (RecepcionComprobantesOffline y AutorizacionComprobantesOffline).

package sri

import "encoding/xml"

const (
	nsSOAP        = "http://schemas.xmlsoap.org/soap/envelope/"
	nsRecepcion   = "http://ec.gob.sri.ws.recepcion"
	nsAutorizacion = "http://ec.gob.sri.ws.autorizacion"
)

// ── Request ───────────────────────────────────────────────────────────────────

type sobreSOAP struct {
	XMLName  xml.Name    `xml:"soapenv:Envelope"`
	XmlnsEnv string      `xml:"xmlns:soapenv,attr"`
	XmlnsEC  string      `xml:"xmlns:ec,attr"`
	Header   struct{}    `xml:"soapenv:Header"`
	Body     cuerpoSOAP  `xml:"soapenv:Body"`
}

type cuerpoSOAP struct {
	Contenido interface{}
}

func (b cuerpoSOAP) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Contenido); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// validarComprobanteBody operación de recepción. El comprobante firmado viaja
// en base64 dentro del parámetro xml.
type validarComprobanteBody struct {
	XMLName xml.Name `xml:"ec:validarComprobante"`
	XML     string   `xml:"xml"`
}

// autorizacionComprobanteBody operación de consulta de autorización.
type autorizacionComprobanteBody struct {
	XMLName xml.Name `xml:"ec:autorizacionComprobante"`
	Clave   string   `xml:"claveAccesoComprobante"`
}

// ── Response ──────────────────────────────────────────────────────────────────

// Las respuestas se decodifican ignorando namespaces (encoding/xml matchea por
// nombre local), lo que tolera los prefijos ns2/ns3 variables del SRI.

type sobreRespuesta struct {
	Body cuerpoRespuesta `xml:"Body"`
}

type cuerpoRespuesta struct {
	Recepcion    *respuestaValidar      `xml:"validarComprobanteResponse"`
	Autorizacion *respuestaAutorizacion `xml:"autorizacionComprobanteResponse"`
	Fault        *fallaSOAP             `xml:"Fault"`
}

type fallaSOAP struct {
	Codigo  string `xml:"faultcode"`
	Detalle string `xml:"faultstring"`
}

type respuestaValidar struct {
	Respuesta respuestaRecepcionComprobante `xml:"RespuestaRecepcionComprobante"`
}

type respuestaRecepcionComprobante struct {
	Estado       string                 `xml:"estado"`
	Comprobantes []comprobanteRecepcion `xml:"comprobantes>comprobante"`
}

type comprobanteRecepcion struct {
	ClaveAcceso string       `xml:"claveAcceso"`
	Mensajes    []mensajeSRI `xml:"mensajes>mensaje"`
}

type mensajeSRI struct {
	Identificador        string `xml:"identificador"`
	Mensaje              string `xml:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional"`
	Tipo                 string `xml:"tipo"`
}

type respuestaAutorizacion struct {
	Respuesta respuestaAutorizacionComprobante `xml:"RespuestaAutorizacionComprobante"`
}

type respuestaAutorizacionComprobante struct {
	ClaveAccesoConsultada string        `xml:"claveAccesoConsultada"`
	NumeroComprobantes    string        `xml:"numeroComprobantes"`
	Autorizaciones        []autorizacion `xml:"autorizaciones>autorizacion"`
}

type autorizacion struct {
	Estado             string       `xml:"estado"`
	NumeroAutorizacion string       `xml:"numeroAutorizacion"`
	FechaAutorizacion  string       `xml:"fechaAutorizacion"`
	Ambiente           string       `xml:"ambiente"`
	Comprobante        string       `xml:"comprobante"` // XML autorizado (CDATA)
	Mensajes           []mensajeSRI `xml:"mensajes>mensaje"`
}

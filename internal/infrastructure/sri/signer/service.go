// Servicio de firma XML-DSIG enveloped para comprobantes electrónicos SRI.
// Apende <ds:Signature> como último hijo de la raíz (id="comprobante").

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
)

// ServicioFirma firma comprobantes con la credencial del titular.
type ServicioFirma struct{}

// NewServicioFirma crea el servicio.
func NewServicioFirma() *ServicioFirma {
	return &ServicioFirma{}
}

// Firmar firma el comprobante y devuelve los bytes finales. El digest se
// calcula ANTES de apendar la firma: como la transform enveloped descarta
// ds:Signature al verificar, el documento sin firma y el firmado canonicalizan
// igual. Los bytes devueltos son definitivos; re-serializarlos rompe el digest.
func (s *ServicioFirma) Firmar(xmlBytes []byte, cred *Credencial) (*comprobante.DocumentoFirmado, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("%w: XML vacío", comprobante.ErrEntradaInvalida)
	}
	if cred == nil || cred.ClavePrivada == nil || cred.Certificado == nil {
		return nil, fmt.Errorf("%w: credencial incompleta", comprobante.ErrCredencialInvalida)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("%w: parsear XML: %v", comprobante.ErrEsquemaInvalido, err)
	}
	raiz := doc.Root()
	if raiz == nil {
		return nil, fmt.Errorf("%w: documento sin raíz", comprobante.ErrEsquemaInvalido)
	}
	for _, hijo := range raiz.ChildElements() {
		if localTag(hijo) == "Signature" {
			return nil, fmt.Errorf("%w: el comprobante ya está firmado", comprobante.ErrFirma)
		}
	}

	// El SRI solo reconoce el atributo id en minúscula. Variantes Id/ID se
	// descartan para que la Reference apunte a un único atributo.
	raiz.RemoveAttr("Id")
	raiz.RemoveAttr("ID")
	id := raiz.SelectAttr("id")
	if id == nil || id.Value != ComprobanteID {
		return nil, fmt.Errorf("%w: la raíz no lleva id=%q", comprobante.ErrEsquemaInvalido, ComprobanteID)
	}

	clave := textoDescendiente(raiz, "infoTributaria", "claveAcceso")
	if err := validarCredencial(cred); err != nil {
		return nil, err
	}

	// La raíz declara xmlns:ds ANTES de calcular el digest: el C14N inclusivo
	// incluye las declaraciones de namespace de la raíz, así que agregarla
	// después de firmar invalidaría la Reference.
	raiz.CreateAttr("xmlns:ds", NamespaceDS)

	// El digest se calcula sobre la serialización del árbol ya depurado (sin
	// Id/ID, con xmlns:ds), que es la misma que se emite al final con la firma
	// apendada.
	var depurado bytes.Buffer
	if _, err := doc.WriteTo(&depurado); err != nil {
		return nil, fmt.Errorf("%w: serializar comprobante: %v", comprobante.ErrFirma, err)
	}

	// 1) Digest del documento canónico (Reference URI="#comprobante").
	canonico, err := canonicalizar(depurado.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar comprobante: %v", comprobante.ErrFirma, err)
	}
	digest := sha256.Sum256(canonico)
	digestB64 := base64.StdEncoding.EncodeToString(digest[:])

	// 2) SignedInfo canónico → RSA-SHA256.
	signedInfo := construirSignedInfo(digestB64)
	signedInfoCanonico, err := canonicalizar([]byte(signedInfo))
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar SignedInfo: %v", comprobante.ErrFirma, err)
	}
	resumen := sha256.Sum256(signedInfoCanonico)
	firma, err := rsa.SignPKCS1v15(nil, cred.ClavePrivada, crypto.SHA256, resumen[:])
	if err != nil {
		return nil, fmt.Errorf("%w: firmar SignedInfo: %v", comprobante.ErrFirma, err)
	}

	// 3) ds:Signature completo, apendado como ÚLTIMO hijo de la raíz.
	firmaXML := construirSignature(signedInfo, base64.StdEncoding.EncodeToString(firma), cred.CertificadoB64)
	firmado, err := apendarFirma(doc, firmaXML)
	if err != nil {
		return nil, err
	}

	return &comprobante.DocumentoFirmado{
		XML:         firmado,
		RaizLocal:   localTagNombre(raiz.Tag),
		ClaveAcceso: clave,
	}, nil
}

func validarCredencial(cred *Credencial) error {
	if !cred.EsFirmaDigital {
		return fmt.Errorf("%w: el certificado no es de firma digital (keyUsage)", comprobante.ErrCredencialInvalida)
	}
	return nil
}

// canonicalizar aplica C14N inclusivo 2001 sobre el stream de tokens.
func canonicalizar(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func construirSignedInfo(digestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<ds:Reference URI="#` + ComprobanteID + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<ds:Transform Algorithm="` + AlgC14N + `"/></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + digestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func construirSignature(signedInfo, firmaB64, certB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(signedInfo)
	sb.WriteString(`<ds:SignatureValue>` + firmaB64 + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data></ds:KeyInfo>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

func apendarFirma(doc *etree.Document, firmaXML string) ([]byte, error) {
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(firmaXML); err != nil {
		return nil, fmt.Errorf("%w: parsear Signature: %v", comprobante.ErrFirma, err)
	}
	doc.Root().AddChild(sigDoc.Root())
	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("%w: serializar comprobante firmado: %v", comprobante.ErrFirma, err)
	}
	return out.Bytes(), nil
}

func localTag(e *etree.Element) string {
	return localTagNombre(e.Tag)
}

func localTagNombre(tag string) string {
	if i := strings.LastIndex(tag, ":"); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

func textoDescendiente(raiz *etree.Element, camino ...string) string {
	actual := raiz
	for _, nombre := range camino {
		var siguiente *etree.Element
		for _, hijo := range actual.ChildElements() {
			if localTag(hijo) == nombre {
				siguiente = hijo
				break
			}
		}
		if siguiente == nil {
			return ""
		}
		actual = siguiente
	}
	return strings.TrimSpace(actual.Text())
}

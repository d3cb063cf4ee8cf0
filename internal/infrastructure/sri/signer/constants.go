// Constantes de firma XML-DSIG según la Ficha Técnica SRI (comprobantes offline).

package signer

// Namespaces y algoritmos XMLDSig. El SRI exige exactamente esta combinación:
// C14N inclusivo 2001, RSA-SHA256 y digest SHA-256; los defaults de librerías
// genéricas (SHA-1, C14N exclusivo) producen comprobantes rechazados.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// ComprobanteID valor del atributo id de la raíz al que apunta la Reference.
// Debe ser minúscula exacta: el SRI rechaza Id/ID.
const ComprobanteID = "comprobante"

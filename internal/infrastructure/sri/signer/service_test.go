package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/xml"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
)

const claveAccesoPrueba = "0708202501091809778300110010010000000011234567818"

func comprobantePrueba() []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<factura id="comprobante" version="1.1.0">
  <infoTributaria>
    <ambiente>1</ambiente>
    <ruc>0918097783001</ruc>
    <claveAcceso>` + claveAccesoPrueba + `</claveAcceso>
  </infoTributaria>
  <detalles>
    <detalle>
      <descripcion>Producto</descripcion>
    </detalle>
  </detalles>
</factura>
`)
}

// credencialDePrueba genera una llave RSA y un certificado autofirmado con
// keyUsage de firma digital y no repudio, como los de las CA ecuatorianas.
func credencialDePrueba(t *testing.T) *Credencial {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	plantilla := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "JUAN PEREZ",
			SerialNumber: "0918097783001",
		},
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(24 * time.Hour),
		KeyUsage:  x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
	}
	der, err := x509.CreateCertificate(rand.Reader, plantilla, plantilla, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &Credencial{
		ClavePrivada:   key,
		Certificado:    cert,
		CertificadoB64: base64.StdEncoding.EncodeToString(cert.Raw),
		RUCTitular:     "0918097783001",
		NombreTitular:  "JUAN PEREZ",
		EsFirmaDigital: true,
		ValidoDesde:    cert.NotBefore,
		ValidoHasta:    cert.NotAfter,
	}
}

func canonicalizarTest(t *testing.T, data []byte) []byte {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	out, err := c14n.Canonicalize(dec)
	require.NoError(t, err)
	return out
}

func TestFirmar_FirmaComoUltimoHijo(t *testing.T) {
	cred := credencialDePrueba(t)
	doc, err := NewServicioFirma().Firmar(comprobantePrueba(), cred)
	require.NoError(t, err)
	assert.Equal(t, "factura", doc.RaizLocal)
	assert.Equal(t, claveAccesoPrueba, doc.ClaveAcceso)

	arbol := etree.NewDocument()
	require.NoError(t, arbol.ReadFromBytes(doc.XML))
	hijos := arbol.Root().ChildElements()
	require.NotEmpty(t, hijos)
	ultimo := hijos[len(hijos)-1]
	assert.Equal(t, "Signature", ultimo.Tag)
	assert.Equal(t, "ds", ultimo.Space)
}

func TestFirmar_RaizDeclaraNamespaceDS(t *testing.T) {
	cred := credencialDePrueba(t)
	doc, err := NewServicioFirma().Firmar(comprobantePrueba(), cred)
	require.NoError(t, err)

	arbol := etree.NewDocument()
	require.NoError(t, arbol.ReadFromBytes(doc.XML))
	decl := arbol.Root().SelectAttr("xmlns:ds")
	require.NotNil(t, decl, "la raíz debe declarar xmlns:ds")
	assert.Equal(t, NamespaceDS, decl.Value)
}

func TestFirmar_DigestDelDocumentoSinFirma(t *testing.T) {
	cred := credencialDePrueba(t)
	entrada := comprobantePrueba()
	doc, err := NewServicioFirma().Firmar(entrada, cred)
	require.NoError(t, err)

	arbol := etree.NewDocument()
	require.NoError(t, arbol.ReadFromBytes(doc.XML))
	firma := arbol.Root().FindElement("//Signature")
	require.NotNil(t, firma)
	digestDeclarado := firma.FindElement(".//DigestValue").Text()

	// La transform enveloped descarta la firma: el digest debe coincidir con
	// el del documento original canónico, con xmlns:ds ya declarado en la raíz
	// (la declaración entra al C14N y por eso se agrega antes de digerir).
	sinFirma := etree.NewDocument()
	require.NoError(t, sinFirma.ReadFromBytes(entrada))
	sinFirma.Root().CreateAttr("xmlns:ds", NamespaceDS)
	var esperado bytes.Buffer
	_, err = sinFirma.WriteTo(&esperado)
	require.NoError(t, err)

	suma := sha256.Sum256(canonicalizarTest(t, esperado.Bytes()))
	assert.Equal(t, base64.StdEncoding.EncodeToString(suma[:]), digestDeclarado)
}

func TestFirmar_SignatureValueVerificaConRSA(t *testing.T) {
	cred := credencialDePrueba(t)
	doc, err := NewServicioFirma().Firmar(comprobantePrueba(), cred)
	require.NoError(t, err)

	arbol := etree.NewDocument()
	require.NoError(t, arbol.ReadFromBytes(doc.XML))
	firma := arbol.Root().FindElement("//Signature")
	require.NotNil(t, firma)
	digestB64 := firma.FindElement(".//DigestValue").Text()
	valorB64 := firma.FindElement(".//SignatureValue").Text()

	valor, err := base64.StdEncoding.DecodeString(valorB64)
	require.NoError(t, err)

	// Reconstruir el SignedInfo canónico que el servicio firmó.
	signedInfo := canonicalizarTest(t, []byte(construirSignedInfo(digestB64)))
	resumen := sha256.Sum256(signedInfo)
	assert.NoError(t, rsa.VerifyPKCS1v15(&cred.ClavePrivada.PublicKey, crypto.SHA256, resumen[:], valor))
}

func TestFirmar_IncluyeCertificado(t *testing.T) {
	cred := credencialDePrueba(t)
	doc, err := NewServicioFirma().Firmar(comprobantePrueba(), cred)
	require.NoError(t, err)
	assert.Contains(t, string(doc.XML), cred.CertificadoB64)
}

func TestFirmar_RechazaYaFirmado(t *testing.T) {
	cred := credencialDePrueba(t)
	svc := NewServicioFirma()
	doc, err := svc.Firmar(comprobantePrueba(), cred)
	require.NoError(t, err)

	_, err = svc.Firmar(doc.XML, cred)
	assert.ErrorIs(t, err, comprobante.ErrFirma)
}

func TestFirmar_RechazaSinID(t *testing.T) {
	cred := credencialDePrueba(t)
	sinID := []byte(`<factura version="1.1.0"><detalles/></factura>`)
	_, err := NewServicioFirma().Firmar(sinID, cred)
	assert.ErrorIs(t, err, comprobante.ErrEsquemaInvalido)
}

func TestFirmar_DescartaAtributosIdMayusculas(t *testing.T) {
	cred := credencialDePrueba(t)
	conVariantes := []byte(`<factura Id="otro" id="comprobante" version="1.1.0"><detalles/></factura>`)
	doc, err := NewServicioFirma().Firmar(conVariantes, cred)
	require.NoError(t, err)
	assert.NotContains(t, string(doc.XML), `Id="otro"`)
	assert.Contains(t, string(doc.XML), `id="comprobante"`)
}

func TestFirmar_RechazaCredencialSinFirmaDigital(t *testing.T) {
	cred := credencialDePrueba(t)
	cred.EsFirmaDigital = false
	_, err := NewServicioFirma().Firmar(comprobantePrueba(), cred)
	assert.ErrorIs(t, err, comprobante.ErrCredencialInvalida)
}

func TestFirmar_EntradaVacia(t *testing.T) {
	cred := credencialDePrueba(t)
	_, err := NewServicioFirma().Firmar(nil, cred)
	assert.ErrorIs(t, err, comprobante.ErrEntradaInvalida)
}

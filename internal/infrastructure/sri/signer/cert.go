// Carga de la credencial de firma desde PKCS#12 (.p12/.pfx), con selección del
// certificado del titular entre los bags del contenedor (titular + cadena CA).

package signer

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"time"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
)

// Credencial llave privada + certificado del titular listos para firmar.
// No se comparte entre llamadas de firma: cada firma carga (o clona) la suya
// y la libera al terminar.
type Credencial struct {
	ClavePrivada   *rsa.PrivateKey
	Certificado    *x509.Certificate
	CertificadoB64 string // DER en base64, sin saltos de línea (para ds:X509Certificate)
	RUCTitular     string
	NombreTitular  string
	EsFirmaDigital bool
	ValidoDesde    time.Time
	ValidoHasta    time.Time
}

// Liberar pone a cero el material de la llave privada. Mejor esfuerzo: Go no
// garantiza que no existan copias en el heap.
func (c *Credencial) Liberar() {
	if c == nil || c.ClavePrivada == nil {
		return
	}
	c.ClavePrivada.D.SetInt64(0)
	for _, p := range c.ClavePrivada.Primes {
		p.SetInt64(0)
	}
	c.ClavePrivada = nil
}

// oidRUCExtension extensión usada por las autoridades certificadoras
// ecuatorianas para el RUC del titular.
var oidRUCExtension = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 37746, 3, 11}

var (
	oidUID               = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 1}
	oidUniqueIdentifier  = asn1.ObjectIdentifier{2, 5, 4, 45}
	oidSubjectAltName    = asn1.ObjectIdentifier{2, 5, 29, 17}
	patronRUC            = regexp.MustCompile(`[0-9]{10,13}`)
)

// CargarDesdeArchivo carga la credencial desde un archivo .p12/.pfx.
func CargarDesdeArchivo(path, clave string) (*Credencial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: leer p12 %s: %v", comprobante.ErrCredencialInvalida, path, err)
	}
	return CargarDesdeP12(data, clave)
}

// CargarDesdeBase64 carga la credencial desde un blob PKCS#12 codificado en
// base64 (variable de entorno). El blob se decodifica en memoria: la firma no
// necesita materializarlo a disco.
func CargarDesdeBase64(b64, clave string) (*Credencial, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: decodificar CERT_P12_BASE64: %v", comprobante.ErrCredencialInvalida, err)
	}
	return CargarDesdeP12(data, clave)
}

// CargarDesdeP12 decodifica el contenedor PKCS#12 y selecciona el certificado
// del titular. DecodeChain acepta tanto el key bag plano como el shrouded
// (PKCS#8) y devuelve el certificado hoja más la cadena CA.
func CargarDesdeP12(data []byte, clave string) (*Credencial, error) {
	priv, hoja, cadena, err := pkcs12.DecodeChain(data, clave)
	if err != nil {
		return nil, fmt.Errorf("%w: decodificar p12 (¿contraseña incorrecta?): %v", comprobante.ErrCredencialInvalida, err)
	}
	rsaKey, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: el p12 no contiene una llave privada RSA", comprobante.ErrCredencialInvalida)
	}
	if hoja == nil {
		return nil, fmt.Errorf("%w: el p12 no contiene certificados", comprobante.ErrCredencialInvalida)
	}

	titular := seleccionarTitular(rsaKey, append([]*x509.Certificate{hoja}, cadena...))

	ahora := time.Now()
	if ahora.Before(titular.NotBefore) || ahora.After(titular.NotAfter) {
		return nil, fmt.Errorf("%w: certificado fuera de vigencia (%s — %s)",
			comprobante.ErrCredencialInvalida,
			titular.NotBefore.Format(time.RFC3339), titular.NotAfter.Format(time.RFC3339))
	}
	if !modulosCoinciden(rsaKey, titular) {
		return nil, fmt.Errorf("%w: la llave privada no corresponde al certificado del titular", comprobante.ErrCredencialInvalida)
	}

	ruc := extraerRUC(titular)
	nombre := titular.Subject.CommonName

	cred := &Credencial{
		ClavePrivada:   rsaKey,
		Certificado:    titular,
		CertificadoB64: base64.StdEncoding.EncodeToString(titular.Raw),
		RUCTitular:     ruc,
		NombreTitular:  nombre,
		EsFirmaDigital: esFirmaDigital(titular, ruc, nombre),
		ValidoDesde:    titular.NotBefore,
		ValidoHasta:    titular.NotAfter,
	}
	return cred, nil
}

// seleccionarTitular elige entre los bags el certificado del firmante: se
// prefiere keyUsage digitalSignature+nonRepudiation cuyo módulo RSA coincide
// con la llave; a falta de coincidencia de uso, el primero que comparta módulo;
// como último recurso, el primer certificado.
func seleccionarTitular(key *rsa.PrivateKey, certs []*x509.Certificate) *x509.Certificate {
	const usoFirma = x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment
	for _, c := range certs {
		if c.KeyUsage&usoFirma == usoFirma && modulosCoinciden(key, c) {
			return c
		}
	}
	for _, c := range certs {
		if modulosCoinciden(key, c) {
			return c
		}
	}
	return certs[0]
}

func modulosCoinciden(key *rsa.PrivateKey, cert *x509.Certificate) bool {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	return ok && pub.N.Cmp(key.PublicKey.N) == 0
}

// extraerRUC busca el RUC del titular en orden: serialNumber del subject, UID,
// uniqueIdentifier (2.5.4.45), subjectAltName, la extensión 1.3.6.1.4.1.37746.3.11
// de las CA ecuatorianas y, por último, el serial del propio certificado en
// decimal. Una cédula de 10 dígitos se completa con "001".
func extraerRUC(cert *x509.Certificate) string {
	candidatos := []string{cert.Subject.SerialNumber}

	for _, atv := range cert.Subject.Names {
		if atv.Type.Equal(oidUID) || atv.Type.Equal(oidUniqueIdentifier) {
			if s, ok := atv.Value.(string); ok {
				candidatos = append(candidatos, s)
			}
		}
	}
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidSubjectAltName) || ext.Id.Equal(oidRUCExtension) {
			candidatos = append(candidatos, string(ext.Value))
		}
	}
	candidatos = append(candidatos, cert.SerialNumber.String())

	for _, c := range candidatos {
		if m := patronRUC.FindString(c); m != "" {
			if len(m) == 10 {
				return m + "001"
			}
			return m
		}
	}
	return ""
}

// esFirmaDigital replica la regla del SRI: keyUsage debe declarar firma y no
// repudio; si el certificado no trae keyUsage, se acepta cuando se pudieron
// extraer RUC y nombre del titular.
func esFirmaDigital(cert *x509.Certificate, ruc, nombre string) bool {
	if cert.KeyUsage != 0 {
		const usoFirma = x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment
		return cert.KeyUsage&usoFirma == usoFirma
	}
	return ruc != "" && nombre != ""
}

package sri_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/jhoicas/facturacion-sri/pkg/sri"
)

// ──────────────────────────────────────────────────────────────────────────────
// Casos borde del módulo 11 SRI: el mapeo {11→0, 10→1} es obligatorio.
// Las bases se construyen para caer en residuos exactos de la suma ponderada
// (coeficientes 2..7 aplicados desde la derecha):
//
//   base de ceros            → suma 0   → mod 11 = 0 → dígito 0
//   ...0006 (6 con peso 2)   → suma 12  → mod 11 = 1 → dígito 1
//   ...1000 (1 con peso 5)   → suma 5   → mod 11 = 5 → dígito 6
// ──────────────────────────────────────────────────────────────────────────────

func TestDigitoVerificador_CasosBorde(t *testing.T) {
	ceros := strings.Repeat("0", 48)

	casos := []struct {
		nombre  string
		base    string
		esperado int
	}{
		{"residuo 0 produce digito 0", ceros, 0},
		{"residuo 1 produce digito 1", ceros[:47] + "6", 1},
		{"residuo 5 produce digito 6", ceros[:44] + "1000", 6},
	}

	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			dv, err := sri.DigitoVerificador(c.base)
			require.NoError(t, err)
			assert.Equal(t, c.esperado, dv)
		})
	}
}

func TestDigitoVerificador_BaseInvalida(t *testing.T) {
	_, err := sri.DigitoVerificador("123")
	assert.Error(t, err, "base de menos de 48 dígitos debe fallar")

	_, err = sri.DigitoVerificador(strings.Repeat("0", 47) + "X")
	assert.Error(t, err, "base con caracteres no numéricos debe fallar")
}

// TestGenerarClaveAcceso_Layout verifica el armado exacto de los 48 dígitos
// base con un código numérico inyectado (fecha 2025-08-07, RUC de prueba).
func TestGenerarClaveAcceso_Layout(t *testing.T) {
	fecha := time.Date(2025, 8, 7, 10, 30, 0, 0, time.UTC)

	clave, err := sri.GenerarClaveAcceso(sri.ClaveAccesoParams{
		FechaEmision:    fecha,
		TipoComprobante: sri.DocTipoFactura,
		RUC:             "0918097783001",
		Ambiente:        sri.AmbientePruebas,
		Serie:           "001001",
		Secuencial:      "1",
		CodigoNumerico:  "12345678",
		TipoEmision:     sri.EmisionNormal,
	})
	require.NoError(t, err)
	require.Len(t, clave, 49)

	const baseEsperada = "070820250109180977830011001001000000001123456781"
	assert.Equal(t, baseEsperada, clave[:48], "los 48 dígitos base deben coincidir con el layout SRI")

	dv, err := sri.DigitoVerificador(baseEsperada)
	require.NoError(t, err)
	assert.Equal(t, byte('0'+dv), clave[48], "el dígito 49 debe ser el verificador de la base")
}

// TestGenerarClaveAcceso_SiempreValida toda clave generada valida contra sí misma.
func TestGenerarClaveAcceso_SiempreValida(t *testing.T) {
	fecha := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, secuencial := range []string{"1", "42", "999999999", "000000007"} {
		clave, err := sri.GenerarClaveAcceso(sri.ClaveAccesoParams{
			FechaEmision:    fecha,
			TipoComprobante: sri.DocTipoFactura,
			RUC:             "1790012345001",
			Ambiente:        sri.AmbienteProduccion,
			Serie:           "002010",
			Secuencial:      secuencial,
		})
		require.NoError(t, err)
		assert.True(t, sri.ValidarClaveAcceso(clave), "clave generada debe validar: %s", clave)
	}
}

// TestGenerarClaveAcceso_NotaCredito el tipo 04 comparte el generador de claves.
func TestGenerarClaveAcceso_NotaCredito(t *testing.T) {
	clave, err := sri.GenerarClaveAcceso(sri.ClaveAccesoParams{
		FechaEmision:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		TipoComprobante: sri.DocTipoNotaCredito,
		RUC:             "0918097783001",
		Ambiente:        sri.AmbientePruebas,
		Serie:           "001001",
		Secuencial:      "55",
		CodigoNumerico:  "00000001",
	})
	require.NoError(t, err)
	assert.Equal(t, "04", clave[8:10])
	assert.True(t, sri.ValidarClaveAcceso(clave))
}

func TestGenerarClaveAcceso_EntradasInvalidas(t *testing.T) {
	fecha := time.Date(2025, 8, 7, 0, 0, 0, 0, time.UTC)
	base := sri.ClaveAccesoParams{
		FechaEmision:    fecha,
		TipoComprobante: sri.DocTipoFactura,
		RUC:             "0918097783001",
		Ambiente:        sri.AmbientePruebas,
		Serie:           "001001",
		Secuencial:      "1",
		CodigoNumerico:  "12345678",
	}

	casos := []struct {
		nombre string
		mutar  func(p *sri.ClaveAccesoParams)
	}{
		{"RUC corto", func(p *sri.ClaveAccesoParams) { p.RUC = "091809778" }},
		{"RUC con letras", func(p *sri.ClaveAccesoParams) { p.RUC = "09180977830AB" }},
		{"ambiente desconocido", func(p *sri.ClaveAccesoParams) { p.Ambiente = "3" }},
		{"serie corta", func(p *sri.ClaveAccesoParams) { p.Serie = "001" }},
		{"secuencial vacío", func(p *sri.ClaveAccesoParams) { p.Secuencial = "" }},
		{"secuencial de 10 dígitos", func(p *sri.ClaveAccesoParams) { p.Secuencial = "1234567890" }},
		{"código numérico corto", func(p *sri.ClaveAccesoParams) { p.CodigoNumerico = "123" }},
		{"tipo de comprobante desconocido", func(p *sri.ClaveAccesoParams) { p.TipoComprobante = "99" }},
		{"fecha cero", func(p *sri.ClaveAccesoParams) { p.FechaEmision = time.Time{} }},
	}

	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			p := base
			c.mutar(&p)
			_, err := sri.GenerarClaveAcceso(p)
			assert.Error(t, err)
		})
	}
}

func TestValidarClaveAcceso(t *testing.T) {
	clave, err := sri.GenerarClaveAcceso(sri.ClaveAccesoParams{
		FechaEmision:    time.Date(2025, 8, 7, 0, 0, 0, 0, time.UTC),
		TipoComprobante: sri.DocTipoFactura,
		RUC:             "0918097783001",
		Ambiente:        sri.AmbientePruebas,
		Serie:           "001001",
		Secuencial:      "1",
		CodigoNumerico:  "12345678",
	})
	require.NoError(t, err)

	assert.True(t, sri.ValidarClaveAcceso(clave))

	// Mutar el dígito verificador invalida la clave.
	malo := byte('0' + (clave[48]-'0'+1)%10)
	assert.False(t, sri.ValidarClaveAcceso(clave[:48]+string(malo)))

	assert.False(t, sri.ValidarClaveAcceso(""), "cadena vacía")
	assert.False(t, sri.ValidarClaveAcceso(clave+"1"), "50 dígitos")
	assert.False(t, sri.ValidarClaveAcceso(strings.Repeat("A", 49)), "no numérica")
}

func TestCodigoNumericoAleatorio(t *testing.T) {
	c, err := sri.CodigoNumericoAleatorio()
	require.NoError(t, err)
	assert.Len(t, c, 8)
	for i := 0; i < len(c); i++ {
		assert.True(t, c[i] >= '0' && c[i] <= '9')
	}
}

package sri

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
)

func TestAlmacenGuardar(t *testing.T) {
	dir := t.TempDir()
	a := NewAlmacenComprobantes(dir)
	a.ahora = func() time.Time {
		return time.Date(2025, 8, 7, 11, 30, 45, 0, time.UTC)
	}
	clave := claveParaSOAP(t)

	ruta, err := a.Guardar(comprobante.EstadoFirmado, clave, []byte("<factura/>"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "comprobantes", "firmado", clave+"_20250807-113045.xml"), ruta)
	contenido, err := os.ReadFile(ruta)
	require.NoError(t, err)
	assert.Equal(t, "<factura/>", string(contenido))
}

func TestAlmacenGuardar_DirectorioPorEstado(t *testing.T) {
	dir := t.TempDir()
	a := NewAlmacenComprobantes(dir)
	clave := claveParaSOAP(t)

	estados := map[comprobante.Estado]string{
		comprobante.EstadoFirmado:    "firmado",
		comprobante.EstadoRecibido:   "recibido",
		comprobante.EstadoAutorizado: "autorizado",
		comprobante.EstadoRechazado:  "rechazado",
		comprobante.EstadoError:      "error",
	}
	for estado, subdir := range estados {
		ruta, err := a.Guardar(estado, clave, []byte("<x/>"))
		require.NoError(t, err)
		assert.Contains(t, ruta, filepath.Join("comprobantes", subdir)+string(os.PathSeparator))
	}
}

func TestAlmacenGuardar_SinTemporalesResiduales(t *testing.T) {
	dir := t.TempDir()
	a := NewAlmacenComprobantes(dir)
	clave := claveParaSOAP(t)

	_, err := a.Guardar(comprobante.EstadoAutorizado, clave, []byte("<x/>"))
	require.NoError(t, err)

	entradas, err := os.ReadDir(filepath.Join(dir, "comprobantes", "autorizado"))
	require.NoError(t, err)
	for _, e := range entradas {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "quedó un temporal: %s", e.Name())
	}
}

func TestAlmacenGuardar_Rechazos(t *testing.T) {
	a := NewAlmacenComprobantes(t.TempDir())
	clave := claveParaSOAP(t)

	_, err := a.Guardar(comprobante.EstadoEnProceso, clave, []byte("<x/>"))
	assert.ErrorIs(t, err, comprobante.ErrEntradaInvalida)

	_, err = a.Guardar(comprobante.EstadoFirmado, "123", []byte("<x/>"))
	assert.ErrorIs(t, err, comprobante.ErrEntradaInvalida)

	_, err = a.Guardar(comprobante.EstadoFirmado, clave, nil)
	assert.ErrorIs(t, err, comprobante.ErrEntradaInvalida)
}

func TestAlmacenGuardar_HistorialNoSeBorra(t *testing.T) {
	dir := t.TempDir()
	a := NewAlmacenComprobantes(dir)
	clave := claveParaSOAP(t)

	var n int
	a.ahora = func() time.Time {
		n++
		return time.Date(2025, 8, 7, 11, 30, n, 0, time.UTC)
	}

	_, err := a.Guardar(comprobante.EstadoFirmado, clave, []byte("<a/>"))
	require.NoError(t, err)
	_, err = a.Guardar(comprobante.EstadoFirmado, clave, []byte("<b/>"))
	require.NoError(t, err)

	entradas, err := os.ReadDir(filepath.Join(dir, "comprobantes", "firmado"))
	require.NoError(t, err)
	assert.Len(t, entradas, 2)
}

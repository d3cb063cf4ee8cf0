// Persistencia de artefactos XML por estado bajo comprobantes/<estado>/.

package sri

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
	pkgsri "github.com/jhoicas/facturacion-sri/pkg/sri"
)

// AlmacenComprobantes guarda cada transición de estado como un archivo
// <clave>_<YYYYMMDD-HHmmss>.xml bajo <raiz>/comprobantes/<estado>/. El archivo
// de un estado anterior no se borra: el historial en disco ES la auditoría.
type AlmacenComprobantes struct {
	raiz  string
	ahora func() time.Time
}

// NewAlmacenComprobantes crea el almacén con raíz en dataDir.
func NewAlmacenComprobantes(dataDir string) *AlmacenComprobantes {
	return &AlmacenComprobantes{raiz: dataDir, ahora: time.Now}
}

// Guardar persiste el XML del comprobante en el directorio del estado.
// Escritura atómica: tmp en el mismo directorio + rename, para que un lector
// concurrente nunca vea un XML a medias. Devuelve la ruta final.
func (a *AlmacenComprobantes) Guardar(estado comprobante.Estado, clave string, xml []byte) (string, error) {
	if !pkgsri.ValidarClaveAcceso(clave) {
		return "", fmt.Errorf("%w: clave de acceso inválida %q", comprobante.ErrEntradaInvalida, clave)
	}
	if !estado.Persistible() {
		return "", fmt.Errorf("%w: el estado %s no se persiste", comprobante.ErrEntradaInvalida, estado)
	}
	if len(xml) == 0 {
		return "", fmt.Errorf("%w: XML vacío", comprobante.ErrEntradaInvalida)
	}

	dir := filepath.Join(a.raiz, "comprobantes", estado.Directorio())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("crear directorio %s: %w", dir, err)
	}

	nombre := fmt.Sprintf("%s_%s.xml", clave, a.ahora().Format("20060102-150405"))
	destino := filepath.Join(dir, nombre)

	tmp, err := os.CreateTemp(dir, "."+clave+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("crear temporal en %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(xml); err != nil {
		tmp.Close()
		return "", fmt.Errorf("escribir %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("cerrar %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), destino); err != nil {
		return "", fmt.Errorf("renombrar a %s: %w", destino, err)
	}
	return destino, nil
}

package sri_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/jhoicas/facturacion-sri/pkg/sri"
)

func TestNormalizarRUC(t *testing.T) {
	casos := []struct {
		entrada  string
		esperado string
	}{
		{"0918097783001", "0918097783001"},       // RUC completo
		{"0918097783", "0918097783001"},          // cédula → +001
		{"09-1809778-3", "0918097783001"},        // cédula con separadores
		{"123", ""},                              // ancho inválido
		{"", ""},
	}
	for _, c := range casos {
		assert.Equal(t, c.esperado, sri.NormalizarRUC(c.entrada), "entrada %q", c.entrada)
	}
}

func TestRUCValido(t *testing.T) {
	assert.True(t, sri.RUCValido("0918097783001"))
	assert.False(t, sri.RUCValido("0918097783000"), "sufijo 000 no es establecimiento válido")
	assert.False(t, sri.RUCValido("0918097783"))
	assert.False(t, sri.RUCValido("09180977830O1"))
}

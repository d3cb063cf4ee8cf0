// Pool de workers para emisión de lotes de facturas.

package emission

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
)

// TrabajoEmision una factura dentro de un lote.
type TrabajoEmision struct {
	Factura *comprobante.Factura
	Indice  int
}

// ResultadoEmision desenlace de una factura del lote. Fallo=true cubre los
// errores previos al protocolo (validación, firma); a partir de FIRMADO el
// desenlace viene en Resultado.
type ResultadoEmision struct {
	Indice    int
	Resultado *comprobante.ResultadoFinal
	Fallo     bool
	Error     error
}

// PoolEmision procesa facturas en paralelo contra el mismo orquestador. El SRI
// serializa poco por RUC, así que pocos workers bastan; el límite real es la
// latencia de los WS.
type PoolEmision struct {
	orquestador *Orquestador
	workers     int
	trabajos    chan TrabajoEmision
	resultados  chan ResultadoEmision
	wg          sync.WaitGroup
	log         zerolog.Logger
}

// NewPoolEmision crea el pool con la cantidad de workers dada (mínimo 1).
func NewPoolEmision(orquestador *Orquestador, workers int, log zerolog.Logger) *PoolEmision {
	if workers < 1 {
		workers = 1
	}
	return &PoolEmision{
		orquestador: orquestador,
		workers:     workers,
		trabajos:    make(chan TrabajoEmision, workers*2),
		resultados:  make(chan ResultadoEmision, workers*2),
		log:         log,
	}
}

// ProcesarLote emite todas las facturas del lote y devuelve los resultados
// indexados igual que la entrada. Respeta la cancelación del contexto: las
// facturas no iniciadas se reportan con el error del contexto.
func (p *PoolEmision) ProcesarLote(ctx context.Context, facturas []*comprobante.Factura) []ResultadoEmision {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	go func() {
		defer close(p.trabajos)
		for i, f := range facturas {
			select {
			case p.trabajos <- TrabajoEmision{Factura: f, Indice: i}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		p.wg.Wait()
		close(p.resultados)
	}()

	resultados := make([]ResultadoEmision, len(facturas))
	for i := range resultados {
		resultados[i] = ResultadoEmision{Indice: i, Fallo: true}
	}
	for r := range p.resultados {
		resultados[r.Indice] = r
	}
	// Lo no procesado por cancelación queda marcado con el error del contexto.
	for i := range resultados {
		if resultados[i].Fallo && resultados[i].Error == nil && resultados[i].Resultado == nil {
			resultados[i].Error = ctx.Err()
		}
	}
	return resultados
}

func (p *PoolEmision) worker(ctx context.Context) {
	defer p.wg.Done()
	for t := range p.trabajos {
		resultado, err := p.orquestador.ProcesarFactura(ctx, t.Factura)
		r := ResultadoEmision{Indice: t.Indice, Resultado: resultado, Error: err, Fallo: err != nil}
		select {
		case p.resultados <- r:
		case <-ctx.Done():
			return
		}
	}
}

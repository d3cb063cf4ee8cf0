package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sri/internal/application/emission"
	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Orquestador *emission.Orquestador
	Emisor      comprobante.Emisor
	Ambiente    string
	Log         zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "ambiente": deps.Ambiente})
	})

	api := app.Group("/api/v1")

	handler := NewComprobanteHandler(deps.Orquestador, deps.Emisor, deps.Ambiente, deps.Log)
	comprobantes := api.Group("/comprobantes")
	comprobantes.Post("/", handler.Emitir)
	comprobantes.Get("/:clave", handler.Consultar)
}

package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/facturacion-sri/internal/application/emission"
	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
)

// ComprobanteHandler expone el ciclo de emisión por HTTP. Es una capa delgada:
// toda la lógica vive en el orquestador.
type ComprobanteHandler struct {
	orq      *emission.Orquestador
	emisor   comprobante.Emisor
	ambiente string
	log      zerolog.Logger
}

// NewComprobanteHandler construye el handler.
func NewComprobanteHandler(orq *emission.Orquestador, emisor comprobante.Emisor, ambiente string, log zerolog.Logger) *ComprobanteHandler {
	return &ComprobanteHandler{orq: orq, emisor: emisor, ambiente: ambiente, log: log}
}

// Emitir procesa una factura de punta a punta y devuelve el desenlace.
// POST /api/v1/comprobantes
func (h *ComprobanteHandler) Emitir(c *fiber.Ctx) error {
	var in EmitirFacturaRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	factura, err := in.AFactura(h.emisor, h.ambiente)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}

	resultado, err := h.orq.ProcesarFactura(c.Context(), factura)
	if err != nil {
		return h.responderError(c, err)
	}
	return c.JSON(ResultadoResponse{
		ClaveAcceso:        resultado.ClaveAcceso,
		Estado:             string(resultado.Estado),
		NumeroAutorizacion: resultado.NumeroAutorizacion,
		Mensajes:           mensajesDTO(resultado.Mensajes),
		Exito:              resultado.Exito,
	})
}

// Consultar busca la autorización registrada en el SRI para una clave.
// GET /api/v1/comprobantes/:clave
func (h *ComprobanteHandler) Consultar(c *fiber.Ctx) error {
	clave := c.Params("clave")
	registro, err := h.orq.Consultar(c.Context(), clave)
	if err != nil {
		return h.responderError(c, err)
	}
	resp := AutorizacionResponse{
		ClaveAcceso:        clave,
		Estado:             string(registro.Estado),
		NumeroAutorizacion: registro.NumeroAutorizacion,
		Mensajes:           mensajesDTO(registro.Mensajes),
	}
	if !registro.FechaAutorizacion.IsZero() {
		resp.FechaAutorizacion = registro.FechaAutorizacion.Format(time.RFC3339)
	}
	return c.JSON(resp)
}

func (h *ComprobanteHandler) responderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, comprobante.ErrEntradaInvalida), errors.Is(err, comprobante.ErrAmbienteInvalido):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, comprobante.ErrNoSoportado):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Code: "NO_SOPORTADO", Message: err.Error()})
	case errors.Is(err, comprobante.ErrNoEncontrado):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Code: "NOT_FOUND", Message: "comprobante no encontrado"})
	case errors.Is(err, comprobante.ErrCredencialInvalida):
		h.log.Error().Err(err).Msg("credencial de firma inválida")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "CERTIFICADO", Message: "credencial de firma inválida"})
	case errors.Is(err, comprobante.ErrFirma), errors.Is(err, comprobante.ErrEsquemaInvalido):
		h.log.Error().Err(err).Msg("error de firma")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "FIRMA", Message: err.Error()})
	case errors.Is(err, comprobante.ErrTransporte), errors.Is(err, comprobante.ErrSriTemporal):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Code: "SRI_NO_DISPONIBLE", Message: err.Error()})
	case errors.Is(err, comprobante.ErrProtocoloSri):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Code: "SRI_PROTOCOLO", Message: err.Error()})
	default:
		h.log.Error().Err(err).Msg("error interno en emisión")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/facturacion-sri/internal/application/emission"
	"github.com/jhoicas/facturacion-sri/internal/domain/comprobante"
	infrasri "github.com/jhoicas/facturacion-sri/internal/infrastructure/sri"
	"github.com/jhoicas/facturacion-sri/internal/infrastructure/sri/signer"
	httpRouter "github.com/jhoicas/facturacion-sri/internal/interfaces/http"
	"github.com/jhoicas/facturacion-sri/pkg/config"
	"github.com/jhoicas/facturacion-sri/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		Dir:   cfg.App.LogDir,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente_sri", cfg.SRI.Ambiente).
		Msg("iniciando aplicación")

	builder := infrasri.NewXMLBuilderService(time.Duration(cfg.SRI.ToleranciaRelojMin) * time.Minute)
	builder.AvisoFechaAjustada = func(original, ajustada time.Time) {
		log.Warn().
			Time("original", original).
			Time("ajustada", ajustada).
			Msg("fecha de emisión futura ajustada al reloj del sistema")
	}

	firmador := signer.NewFirmadorP12(cfg.Certificado.Path, cfg.Certificado.P12Base64, cfg.Certificado.Clave)
	// Verificación temprana de la credencial: el proceso arranca igual, pero
	// el problema queda a la vista antes de la primera emisión.
	if ruc, nombre, err := firmador.Titular(); err != nil {
		log.Warn().Err(err).Msg("credencial de firma no disponible al arranque")
	} else {
		log.Info().Str("ruc_titular", ruc).Str("titular", nombre).Msg("credencial de firma cargada")
	}

	cliente, err := infrasri.NewClienteSOAP(cfg.SRI.Ambiente, *log.SRI())
	if err != nil {
		log.Fatal().Err(err).Msg("cliente SOAP del SRI")
	}
	espera := time.Duration(cfg.SRI.TiempoEsperaMs) * time.Millisecond
	cliente.PoliticaEnvio.Espera = espera
	cliente.PoliticaConsulta.Espera = espera

	almacen := infrasri.NewAlmacenComprobantes(cfg.App.DataDir)

	orquestador := emission.NewOrquestador(builder, firmador, cliente, almacen, log.Zerolog())
	orquestador.EsperaAutorizacion = espera

	emisor := comprobante.Emisor{
		RUC:                      cfg.Empresa.RUC,
		RazonSocial:              cfg.Empresa.RazonSocial,
		NombreComercial:          cfg.Empresa.NombreComercial,
		DireccionMatriz:          cfg.Empresa.DireccionMatriz,
		DireccionEstablecimiento: cfg.Empresa.DireccionEstablecimiento,
		CodigoEstablecimiento:    cfg.Empresa.CodigoEstablecimiento,
		PuntoEmision:             cfg.Empresa.PuntoEmision,
		ObligadoContabilidad:     cfg.Empresa.ObligadoContabilidad,
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 120, // la emisión sincrónica espera los WS del SRI
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Orquestador: orquestador,
		Emisor:      emisor,
		Ambiente:    cfg.SRI.Ambiente,
		Log:         log.Zerolog(),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

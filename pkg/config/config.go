package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jhoicas/facturacion-sri/pkg/sri"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env
// y opcionalmente archivo .env).
type Config struct {
	App         AppConfig
	HTTP        HTTPConfig
	Empresa     EmpresaConfig
	Certificado CertificadoConfig
	SRI         SRIConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
	LogDir   string // directorio de logs diarios (vacío = solo stdout)
	DataDir  string // raíz donde se crea comprobantes/<estado>/
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EmpresaConfig identidad tributaria del emisor, presente en todo comprobante.
type EmpresaConfig struct {
	RUC                      string
	RazonSocial              string
	NombreComercial          string
	DireccionMatriz          string
	DireccionEstablecimiento string
	CodigoEstablecimiento    string
	PuntoEmision             string
	ObligadoContabilidad     bool
}

// CertificadoConfig fuente del PKCS#12 de firma. Si P12Base64 no está vacío
// tiene prioridad sobre Path.
type CertificadoConfig struct {
	Path      string
	P12Base64 string
	Clave     string
}

// SRIConfig parámetros del protocolo SRI.
type SRIConfig struct {
	Ambiente           string // "1" pruebas, "2" producción
	ToleranciaRelojMin int    // margen en minutos para la comparación "ahora en Ecuador"
	TiempoEsperaMs     int    // espera entre recepción y primer poll de autorización
}

// Load lee la configuración desde variables de entorno (y opcionalmente .env).
// Las env vars tienen prioridad. Valida SRI_AMBIENTE contra el catálogo.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "facturacion-sri"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
			LogDir:   getString(v, "LOG_DIR", "logs"),
			DataDir:  getString(v, "DATA_DIR", "."),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getIntDefault(v, "HTTP_PORT", 8080),
		},
		Empresa: EmpresaConfig{
			RUC:                      getString(v, "EMPRESA_RUC", ""),
			RazonSocial:              getString(v, "EMPRESA_RAZON_SOCIAL", ""),
			NombreComercial:          getString(v, "EMPRESA_NOMBRE_COMERCIAL", ""),
			DireccionMatriz:          getString(v, "EMPRESA_DIRECCION_MATRIZ", ""),
			DireccionEstablecimiento: getString(v, "EMPRESA_DIRECCION_ESTABLECIMIENTO", ""),
			CodigoEstablecimiento:    getString(v, "EMPRESA_CODIGO_ESTABLECIMIENTO", "001"),
			PuntoEmision:             getString(v, "EMPRESA_PUNTO_EMISION", "001"),
			ObligadoContabilidad:     strings.EqualFold(getString(v, "EMPRESA_OBLIGADO_CONTABILIDAD", "NO"), "SI"),
		},
		Certificado: CertificadoConfig{
			Path:      getString(v, "CERTIFICADO_PATH", ""),
			P12Base64: getString(v, "CERT_P12_BASE64", ""),
			Clave:     getString(v, "CERTIFICADO_CLAVE", ""),
		},
		SRI: SRIConfig{
			Ambiente:           getString(v, "SRI_AMBIENTE", sri.AmbientePruebas),
			ToleranciaRelojMin: getIntDefault(v, "SRI_TOLERANCIA_RELOJ_MIN", 5),
			TiempoEsperaMs:     getIntDefault(v, "SRI_TIEMPO_ESPERA_MS", 3000),
		},
	}

	if !sri.AmbienteValido(cfg.SRI.Ambiente) {
		return nil, fmt.Errorf("SRI_AMBIENTE inválido: %q (usar 1=pruebas o 2=producción)", cfg.SRI.Ambiente)
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getIntDefault(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		return v.GetInt(key)
	}
	return def
}

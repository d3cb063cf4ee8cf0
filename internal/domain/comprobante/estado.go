package comprobante

// Estado estado del comprobante en su ciclo de vida SRI.
type Estado string

const (
	EstadoFirmado    Estado = "FIRMADO"
	EstadoRecibido   Estado = "RECIBIDO"
	EstadoEnProceso  Estado = "EN_PROCESO" // transitorio: nunca se persiste como terminal
	EstadoAutorizado Estado = "AUTORIZADO"
	EstadoRechazado  Estado = "RECHAZADO"
	EstadoError      Estado = "ERROR"
)

// Terminal indica si el estado cierra el ciclo de vida del comprobante.
func (e Estado) Terminal() bool {
	switch e {
	case EstadoAutorizado, EstadoRechazado, EstadoError:
		return true
	}
	return false
}

// Persistible indica si el estado genera un artefacto XML en disco.
// EN_PROCESO es transitorio y no se escribe nunca.
func (e Estado) Persistible() bool {
	switch e {
	case EstadoFirmado, EstadoRecibido, EstadoAutorizado, EstadoRechazado, EstadoError:
		return true
	}
	return false
}

// Directorio nombre de subdirectorio bajo comprobantes/ para el estado.
func (e Estado) Directorio() string {
	switch e {
	case EstadoFirmado:
		return "firmado"
	case EstadoRecibido:
		return "recibido"
	case EstadoAutorizado:
		return "autorizado"
	case EstadoRechazado:
		return "rechazado"
	case EstadoError:
		return "error"
	default:
		return "desconocido"
	}
}

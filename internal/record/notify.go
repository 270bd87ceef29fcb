package record

import "github.com/rs/zerolog"

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing message raised by the record.
type Notice struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(message string) bool
}

type ConfirmFunc func(message string) bool

func (f ConfirmFunc) Confirm(message string) bool { return f(message) }

// LogNotifier writes notices to a zerolog logger. It is the default when no
// Notifier is configured.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	var ev *zerolog.Event
	switch n.Level {
	case LevelError:
		ev = l.Logger.Error()
	case LevelWarning:
		ev = l.Logger.Warn()
	default:
		ev = l.Logger.Info()
	}
	ev.Str("level_hint", string(n.Level)).Str("title", n.Title).Msg(n.Message)
}

// confirmed treats a missing confirmer as a refusal.
func confirmed(c Confirmer, message string) bool {
	return c != nil && c.Confirm(message)
}

const (
	msgIncompleteTitle   = "Datos incompletos"
	msgIncomplete        = "Completa al menos nombre y cédula del paciente para guardar."
	msgNoValidTitle      = "Sin cambios válidos"
	msgNoValidExisting   = "Agrega sesiones, odontograma, adjuntos o modifica datos antes de guardar."
	msgNoValidNew        = "Agrega al menos una sesión para guardar un paciente nuevo."
	msgNoChangesTitle    = "Sin cambios"
	msgNoChanges         = "No hay modificaciones para guardar"
	msgSavedTitle        = "Guardado exitoso"
	msgSavedFull         = "La historia clínica se ha guardado correctamente"
	msgSavedGranular     = "Se guardaron %d cambio(s) correctamente"
	msgSaveErrorTitle    = "Error al guardar"
	msgSaveError         = "No se pudo guardar: %s"
	msgLoadErrorTitle    = "Error al cargar"
	msgLoadError         = "Error al cargar los datos del paciente: %s"
	msgAutoDraftTitle    = "Nueva sesion creada"
	msgAutoDraft         = "Se creo una sesion automaticamente para este diagnostico"
	msgNoPatientTitle    = "Sin paciente"
	msgNoPatient         = "Selecciona un paciente primero"
	msgPaymentTitle      = "Abono registrado"
	msgPayment           = "El abono se ha guardado correctamente"
	msgPaymentError      = "No se pudo guardar el abono: %s"
	msgConfirmSwitch     = "Hay cambios sin guardar en el odontograma de esta sesión. ¿Cambiar de sesión sin guardar?"
	msgConfirmReset      = "¿Crear una nueva historia? Se perderán cambios no guardados."
	msgConfirmResetDraft = "Tienes %d sesión(es) en BORRADOR sin guardar.\n\n¿Estás seguro de crear una nueva historia? Se perderán todos los borradores."
	msgConfirmDropDraft  = "¿Eliminar esta sesión en borrador?"
)

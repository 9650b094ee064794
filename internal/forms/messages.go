package forms

import (
	"fmt"
	"strconv"
)

// User-facing messages. The wording is part of the observable contract.
const (
	MsgSchemaLoadFailed   = "Error al cargar el formulario. La estructura del control no es válida."
	MsgRequired           = "Este campo es obligatorio"
	MsgInvalidFormat      = "Formato no válido"
	MsgSignatureRequired  = "Es obligatorio firmar el control"
	MsgSigned             = "Control firmado correctamente"
	MsgFormIncomplete     = "Formulario incompleto: revise los campos marcados"
	MsgSignaturePending   = "Pulse para firmar"
	MsgSignatureCompleted = "Firmado"

	DefaultUserName = "Usuario"
)

func msgMin(min float64) string {
	return "El valor debe ser mayor o igual a " + formatNumber(min)
}

func msgMax(max float64) string {
	return "El valor debe ser menor o igual a " + formatNumber(max)
}

func msgTemperatureRange(r TemperatureRange) string {
	unit := string(r.UnitOrDefault())
	return fmt.Sprintf("La temperatura debe estar entre %s°%s y %s°%s",
		formatNumber(r.Min), unit, formatNumber(r.Max), unit)
}

func msgMinLength(n int) string {
	return "Debe tener al menos " + strconv.Itoa(n) + " caracteres"
}

func msgMaxLength(n int) string {
	return "No puede superar los " + strconv.Itoa(n) + " caracteres"
}

func msgTemperatureHelp(r TemperatureRange) string {
	sym := r.Symbol()
	return fmt.Sprintf("Rango aceptable: %s%s - %s%s", formatNumber(r.Min), sym, formatNumber(r.Max), sym)
}

func msgSignedBy(name, when string) string {
	return fmt.Sprintf("Firmado por %s el %s", name, when)
}

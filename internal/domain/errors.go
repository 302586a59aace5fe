package domain

import (
	"errors"
	"fmt"
)

// IntegrityError señala una sesión corrupta (conteo de choices inválido,
// referencias a escenas/opciones inexistentes, pesos malformados). Es fatal:
// nunca se reintenta ni se corrige en silencio.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "session integrity: " + e.Reason
}

// NewIntegrityError construye un IntegrityError con formato printf.
func NewIntegrityError(format string, args ...any) error {
	return &IntegrityError{Reason: fmt.Sprintf(format, args...)}
}

// IsIntegrityError indica si err pertenece a la clase de integridad de datos.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

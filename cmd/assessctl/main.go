// Command assessctl es la herramienta de operacion: puntuar archivos de respuestas,
// listar el banco de preguntas, aplicar el esquema y regenerar analisis.
package main

import (
	"errors"
	"fmt"
	"os"

	"disc-assess/internal/llm"
)

const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitRateLimited = 75
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, llm.ErrRateLimited) {
			os.Exit(ExitRateLimited)
		}
		os.Exit(ExitError)
	}
}

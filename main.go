package main

import (
	"github.com/planperfect/planperfect/cmd"
	"github.com/planperfect/planperfect/internal/logger"
)

func main() {
	defer logger.HandlePanic()
	cmd.Execute()
}

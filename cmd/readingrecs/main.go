package main

import (
	"readingrecs/cmd/cmd"
	"readingrecs/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	cmd.Execute()
}

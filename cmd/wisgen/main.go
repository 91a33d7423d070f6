package main

import (
	"wisgen/cmd/handlers"
	"wisgen/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}

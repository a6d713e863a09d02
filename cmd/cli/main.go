package main

import (
	"sqpplus/internal/cli/cmd"
	"sqpplus/internal/config"
)

func main() {
	port := config.GetPort()
	cmd.Execute(port)
}

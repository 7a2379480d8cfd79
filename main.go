package main

import (
	"log/slog"

	"github.com/Emmyhack/TFN/cmd"
	"github.com/Emmyhack/TFN/internal/logging"
)

func main() {
	logging.Init(slog.LevelWarn)
	cmd.Execute()
}

package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/Rettend/todoman/internal/app"
)

func main() {
	// .envファイルがあれば読み込む（ローカル開発用。本番では存在しない）
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

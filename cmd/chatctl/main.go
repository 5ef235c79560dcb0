// chatctl — инструмент командной строки для работы с чатом,
// сессиями и pipeline через HTTP API.
//
// Использование:
//
//	chatctl [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	chat      Отправка сообщений
//	session   Сессии: список, история, документы
//	pipeline  Pipeline: реестр, валидация, публикация, запуски
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Fiberwise-AI/ia-chat-app/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "chatctl",
		Short:         "chatctl — chat pipeline tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewChatCmd(clientFn, outputFn),
		cli.NewSessionCmd(clientFn, outputFn),
		cli.NewPipelineCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

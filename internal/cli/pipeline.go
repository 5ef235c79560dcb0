package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
)

// NewPipelineCmd создаёт группу команд для работы с pipeline.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
		newPipelineValidateCmd(outputFn),
		newPipelinePublishCmd(clientFn, outputFn),
		newPipelineRunCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines()
			if err != nil {
				return err
			}

			headers := []string{"NAME"}
			rows := make([][]string, len(pipelines))
			for i, p := range pipelines {
				rows[i] = []string{p.Name}
			}

			out.Print(headers, rows, pipelines)
			return nil
		},
	}
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show pipeline definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipeline, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			// Определение и есть полезная нагрузка, таблица не нужна
			var definition any
			if err := json.Unmarshal(pipeline.Definition, &definition); err != nil {
				return err
			}
			out.JSON(definition)
			return nil
		},
	}
}

func newPipelineValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a pipeline definition locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			p, err := engine.Load(data)
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline %s is valid: %d steps, %d paths", p.ID, len(p.Steps), len(p.Flow.Paths)))
			return nil
		},
	}
}

func newPipelinePublishCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "publish FILE",
		Short: "Publish a pipeline definition to the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			pipeline, err := client.PublishPipeline(data)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline published: %s", pipeline.Name))
			return nil
		},
	}
}

func newPipelineRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputJSON string

	cmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Run a pipeline with a raw input payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var input map[string]any
			if inputJSON != "" {
				if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
					return fmt.Errorf("invalid --input JSON: %w", err)
				}
			}

			run, runErr := client.RunPipeline(args[0], input)
			if runErr != nil && run == nil {
				return runErr
			}

			if out.jsonMode {
				out.JSON(run)
			} else {
				headers := []string{"STEP", "STATUS", "ERROR"}
				var rows [][]string
				for stepID, status := range run.Statuses {
					rows = append(rows, []string{stepID, status, run.Failed[stepID]})
				}
				out.Table(headers, rows)
			}

			return runErr
		},
	}

	cmd.Flags().StringVar(&inputJSON, "input", "", "Input payload as JSON object")

	return cmd
}

// Command analyze runs the analysis pipeline over local files and prints the report as JSON.
//
// Usage:
//
//	analyze [-weights '{"team":30}'] [-o report.json] file [file...]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"dealscope/internal/config"
	"dealscope/internal/domain"
	_ "dealscope/internal/parser/claude"
	_ "dealscope/internal/parser/gemini"
	_ "dealscope/internal/parser/openai"
	"dealscope/internal/service"
)

func main() {
	weightsFlag := flag.String("weights", "", "dimension weight overrides as a JSON object")
	outFlag := flag.String("o", "", "write the report to this file instead of stdout")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: analyze [-weights JSON] [-o FILE] file [file...]")
		os.Exit(2)
	}

	if err := run(flag.Args(), *weightsFlag, *outFlag); err != nil {
		log.Fatal(err)
	}
}

func run(paths []string, weightsJSON, outPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pipeline, err := service.NewPipeline(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	svc := service.NewAnalysisService(
		pipeline.Guard, pipeline.Gateway, pipeline.Consolidator, pipeline.Scorer,
		nil, nil, nil, pipeline.Config,
	)

	input := &service.AnalyzeInput{}
	if weightsJSON != "" {
		if err := json.Unmarshal([]byte(weightsJSON), &input.Weights); err != nil {
			return fmt.Errorf("parsing -weights: %w", err)
		}
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		input.Documents = append(input.Documents, service.DocumentInput{Filename: filepath.Base(p), Data: data})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := svc.Analyze(ctx, input)
	if err != nil {
		var failed *domain.AllDocumentsFailedError
		if errors.As(err, &failed) {
			for _, f := range failed.Failures {
				log.Printf("%s: %s (%s)", f.Filename, f.Error, f.Outcome)
			}
		}
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if outPath == "" {
		fmt.Println(string(out))
		return nil
	}
	if err := os.WriteFile(outPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	log.Printf("report %s written to %s (overall %d, %s)", report.AnalysisID, outPath, report.Overall, report.Decision)
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/compliance-copilot/internal/bootstrap"
	"github.com/kirillkom/compliance-copilot/internal/config"
	"github.com/kirillkom/compliance-copilot/internal/core/usecase"
	"github.com/kirillkom/compliance-copilot/internal/observability/logging"
)

// evaluate runs a golden question set against the live query pipeline
// and writes an xlsx report for offline review.

type goldenSet struct {
	Cases []goldenCase `yaml:"cases"`
}

type goldenCase struct {
	Name            string `yaml:"name"`
	Query           string `yaml:"query"`
	Source          string `yaml:"source"`
	StrictPrivacy   *bool  `yaml:"strict_privacy"`
	ExpectSubstring string `yaml:"expect_substring"`
}

func main() {
	goldenPath := flag.String("golden", "evaluation/golden.yaml", "path to the golden question set")
	outPath := flag.String("out", "evaluation/report.xlsx", "path for the xlsx report")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("compliance-copilot-evaluate", cfg.LogLevel)

	raw, err := os.ReadFile(*goldenPath)
	if err != nil {
		log.Fatalf("read golden set: %v", err)
	}
	var set goldenSet
	if err := yaml.Unmarshal(raw, &set); err != nil {
		log.Fatalf("parse golden set: %v", err)
	}
	if len(set.Cases) == 0 {
		log.Fatalf("golden set %s has no cases", *goldenPath)
	}

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	report := excelize.NewFile()
	const sheet = "Results"
	report.SetSheetName(report.GetSheetName(0), sheet)

	headers := []string{"Case", "Query", "Source", "Answer", "Groundedness", "Citations", "Duration (s)", "Pass"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		report.SetCellValue(sheet, cell, h)
	}

	var (
		passed           int
		answered         int
		citationHits     int
		groundednessSum  float64
		groundednessObsN int
	)
	for i, tc := range set.Cases {
		strict := true
		if tc.StrictPrivacy != nil {
			strict = *tc.StrictPrivacy
		}

		start := time.Now()
		result, err := app.QueryUC.Query(ctx, tc.Query, tc.Source, strict)
		elapsed := time.Since(start)

		row := i + 2
		setRow := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			report.SetCellValue(sheet, cell, value)
		}

		setRow(1, tc.Name)
		setRow(2, tc.Query)
		setRow(3, tc.Source)
		if err != nil {
			setRow(4, "ERROR: "+err.Error())
			setRow(8, false)
			continue
		}

		pass := tc.ExpectSubstring == "" ||
			strings.Contains(strings.ToLower(result.Answer), strings.ToLower(tc.ExpectSubstring))
		if pass {
			passed++
		}
		if result.Answer != usecase.NoResultsAnswer {
			answered++
		}
		if len(result.Citations) > 0 {
			citationHits++
			groundednessSum += result.Groundedness
			groundednessObsN++
		}

		setRow(4, result.Answer)
		setRow(5, result.Groundedness)
		setRow(6, len(result.Citations))
		setRow(7, elapsed.Seconds())
		setRow(8, pass)
	}

	total := float64(len(set.Cases))
	meanGroundedness := 0.0
	if groundednessObsN > 0 {
		meanGroundedness = groundednessSum / float64(groundednessObsN)
	}
	summary := [][2]any{
		{"Cases", len(set.Cases)},
		{"Passed", passed},
		{"Answered rate", float64(answered) / total},
		{"Citation hit rate", float64(citationHits) / total},
		{"Mean groundedness", meanGroundedness},
	}
	summaryRow := len(set.Cases) + 3
	for i, kv := range summary {
		keyCell, _ := excelize.CoordinatesToCellName(1, summaryRow+i)
		valCell, _ := excelize.CoordinatesToCellName(2, summaryRow+i)
		report.SetCellValue(sheet, keyCell, kv[0])
		report.SetCellValue(sheet, valCell, kv[1])
	}

	if err := report.SaveAs(*outPath); err != nil {
		log.Fatalf("write report: %v", err)
	}
	fmt.Printf("evaluated %d cases, %d passed, report: %s\n", len(set.Cases), passed, *outPath)
}

// Command sav3dump decodes a save file and writes its decoded tree as JSON,
// or lists chunk/diagnostic summaries with the -list flag.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"

	"github.com/rodaine/table"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/pxwxnvermx/witcher3-save-edit/container"
	"github.com/pxwxnvermx/witcher3-save-edit/internal/sav3json"
	"github.com/pxwxnvermx/witcher3-save-edit/sav3"
)

func main() {
	var (
		inputFlag, outputFlag string
		listFlag, verboseFlag bool
		checksumsFlag         bool
	)

	flag.StringVar(&inputFlag, "f", "", "input save file")
	flag.StringVar(&outputFlag, "o", "-", "output path for the JSON dump (- for stdout)")
	flag.BoolVar(&listFlag, "list", false, "print a chunk/diagnostics summary instead of dumping JSON")
	flag.BoolVar(&verboseFlag, "v", false, "be verbose")
	flag.BoolVar(&checksumsFlag, "dedup", false, "deduplicate repeated unknown payloads in diagnostics")
	flag.Parse()

	var err error
	var logger *zap.Logger
	if verboseFlag {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal("failed to initialize logger", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if inputFlag == "" {
		logger.Fatal("input file (-f) is required")
	}

	raw, err := os.ReadFile(inputFlag)
	if err != nil {
		logger.Fatal("failed to read input", zap.Error(err))
	}

	image, err := container.Load(raw, container.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to assemble container", zap.Error(err))
	}

	bar := progressbar.Default(-1, "decoding")
	d := sav3.NewDecoder(image.Bytes, int64(image.HeaderSize),
		sav3.WithLogger(logger),
		sav3.WithChecksums(checksumsFlag),
		sav3.WithProgress(func(done, total int) {
			if total > 0 {
				bar.ChangeMax(total)
			}
			_ = bar.Set(done)
		}),
	)

	result, err := d.Decode()
	if err != nil {
		logger.Fatal("failed to decode variable table", zap.Error(err))
	}
	_ = bar.Finish()

	if listFlag {
		printSummary(image, result)
		return
	}

	doc, err := sav3json.Project(result)
	if err != nil {
		logger.Fatal("failed to project decoded tree to JSON", zap.Error(err))
	}

	var out io.Writer
	if outputFlag == "-" {
		out = os.Stdout
	} else {
		f, err := os.OpenFile(outputFlag, os.O_TRUNC|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			logger.Fatal("failed to open output", zap.Error(err))
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		logger.Fatal("failed to write JSON", zap.Error(err))
	}
}

func printSummary(image *container.Image, result *sav3.Result) {
	chunkTbl := table.New("Chunk", "Compressed", "Uncompressed", "Skipped")
	for i, c := range image.Chunks {
		chunkTbl.AddRow(i, c.CompressedSize, c.UncompressedSize, c.Skipped)
	}
	chunkTbl.Print()

	statsTbl := table.New("Metric", "Value")
	statsTbl.AddRow("names", result.Names.Len())
	statsTbl.AddRow("variable table entries", result.Offsets.NumEntries())
	statsTbl.AddRow("top-level groups", len(result.Groups))
	statsTbl.AddRow("records parsed", result.Diagnostics.RecordsParsed())
	statsTbl.AddRow("bytes consumed", result.Diagnostics.BytesConsumed())
	statsTbl.AddRow("unknown occurrences", result.Diagnostics.UnknownCount())
	statsTbl.Print()

	if len(result.Diagnostics.UnknownTypes()) > 0 {
		typesTbl := table.New("Unknown Type", "Occurrences")
		for name, n := range result.Diagnostics.UnknownTypes() {
			typesTbl.AddRow(name, n)
		}
		typesTbl.Print()
	}
}

// dff2glb converts RenderWare DFF models (with optional TXD texture
// dictionaries) into glTF binary files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/dff2glb/internal/config"
	"github.com/Faultbox/dff2glb/internal/logger"
	"github.com/Faultbox/dff2glb/pkg/convert"
	"github.com/Faultbox/dff2glb/pkg/rw"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "convert":
		cmdConvert(args)
	case "info":
		cmdInfo(args)
	case "batch":
		cmdBatch(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`dff2glb - RenderWare DFF/TXD to glTF binary converter

Usage:
  dff2glb <command> [options]

Commands:
  convert <model.dff> [textures.txd]  Convert one model
  info <file.dff|file.txd>            Dump the chunk tree
  batch <srcdir> <dstdir>             Convert a directory of models

Examples:
  dff2glb convert -type skin -o cop.glb cop.dff cop.txd
  dff2glb info infernus.dff
  dff2glb batch -workers 8 ./models ./glb`)
}

func loadSetup(cfgPath string) (*config.Config, *zap.Logger) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.LogFile)
	return cfg, log
}

func parseModelType(s string) (convert.ModelType, error) {
	switch s {
	case "static":
		return convert.ModelStatic, nil
	case "skin":
		return convert.ModelSkin, nil
	default:
		return 0, fmt.Errorf("unknown model type %q (want static or skin)", s)
	}
}

func cmdConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	out := fs.String("o", "", "output path (default: input with .glb extension)")
	modelType := fs.String("type", "", "pipeline: static or skin (default from config)")
	cfgPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: dff2glb convert [-o out.glb] [-type static|skin] <model.dff> [textures.txd]")
		os.Exit(1)
	}

	cfg, log := loadSetup(*cfgPath)
	defer log.Sync()

	if *modelType == "" {
		*modelType = cfg.Convert.ModelType
	}
	mt, err := parseModelType(*modelType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dffPath := fs.Arg(0)
	txdPath := ""
	if fs.NArg() > 1 {
		txdPath = fs.Arg(1)
	}
	outPath := *out
	if outPath == "" {
		outPath = strings.TrimSuffix(dffPath, filepath.Ext(dffPath)) + ".glb"
	}

	if err := convertFile(dffPath, txdPath, outPath, mt, cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", outPath)
}

func convertFile(dffPath, txdPath, outPath string, mt convert.ModelType, cfg *config.Config, log *zap.Logger) error {
	dff, err := os.ReadFile(dffPath)
	if err != nil {
		return err
	}
	var txd []byte
	if txdPath != "" && cfg.Convert.EmbedTextures {
		if txd, err = os.ReadFile(txdPath); err != nil {
			return err
		}
	}

	glb, err := convert.Convert(dff, txd, convert.Options{
		ModelType: mt,
		Logger:    log.With(zap.String("model", filepath.Base(dffPath))),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, glb, 0o644)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: dff2glb info <file.dff|file.txd>")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = rw.Walk(data, func(h rw.ChunkHeader, depth int) error {
		fmt.Printf("%s%s size=%d version=0x%X\n",
			strings.Repeat("  ", depth), rw.ChunkTypeName(h.Type), h.Size, rw.UnpackVersion(h.Version))
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdBatch(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	workers := fs.Int("workers", 0, "concurrent conversions (default from config)")
	modelType := fs.String("type", "", "pipeline: static or skin (default from config)")
	cfgPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: dff2glb batch [-workers n] [-type static|skin] <srcdir> <dstdir>")
		os.Exit(1)
	}
	srcDir, dstDir := fs.Arg(0), fs.Arg(1)

	cfg, log := loadSetup(*cfgPath)
	defer log.Sync()

	if *workers <= 0 {
		*workers = cfg.Convert.Workers
	}
	if *modelType == "" {
		*modelType = cfg.Convert.ModelType
	}
	mt, err := parseModelType(*modelType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	files, err := filepath.Glob(filepath.Join(srcDir, "*.dff"))
	if err != nil || len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No .dff files found in %s\n", srcDir)
		os.Exit(1)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	converted, failed := 0, 0

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dffPath := range jobs {
				base := strings.TrimSuffix(filepath.Base(dffPath), filepath.Ext(dffPath))
				txdPath := filepath.Join(srcDir, base+".txd")
				if _, err := os.Stat(txdPath); err != nil {
					txdPath = ""
				}
				outPath := filepath.Join(dstDir, base+".glb")

				err := convertFile(dffPath, txdPath, outPath, mt, cfg, log)
				mu.Lock()
				if err != nil {
					failed++
					log.Error("conversion failed", zap.String("model", base), zap.Error(err))
				} else {
					converted++
				}
				mu.Unlock()
			}
		}()
	}
	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	wg.Wait()

	fmt.Printf("Converted %d models, %d failed\n", converted, failed)
}

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/kmapdev/go-kpack/kpack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var cli struct {
	Verbose bool `help:"Log debug events."`
	Quiet   bool `help:"Hide progress bars."`

	Show struct {
		Path string `arg:"" help:"Input pack file." type:"existingfile"`
	} `cmd:"" help:"Inspect a pack file."`

	Tile struct {
		Path  string `arg:"" help:"Input pack file." type:"existingfile"`
		Index int    `arg:"" optional:"" default:"-1" help:"Tile index; omit for the main set."`
	} `cmd:"" help:"Output one tile of a pack file as GeoJSON on stdout."`

	Verify struct {
		Input string `arg:"" help:"Input pack file." type:"existingfile"`
	} `cmd:"" help:"Verifies that a pack file is valid."`

	Convert struct {
		Styles            string `arg:"" help:"Style JSON defining classes and thresholds." type:"existingfile"`
		Input             string `arg:"" help:"GeoJSON feature collection; each feature needs a class property." type:"existingfile"`
		Output            string `arg:"" help:"Output pack file." type:"path"`
		MaxObjectsPerTile int    `default:"500000" help:"Average number of tiled objects per tile."`
		Compression       string `default:"zlib" enum:"zlib,zstd,none" help:"Block compression."`
		Borders           string `help:"GeoJSON file whose polygon outer rings become the map borders." type:"existingfile"`
		VerifyOutput      bool   `help:"Verify the output after writing."`
	} `cmd:"" help:"Convert GeoJSON to a pack file."`

	Version struct {
	} `cmd:"" help:"Show the program version."`
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create logger,", err)
		os.Exit(1)
	}
	return logger
}

func main() {
	if len(os.Args) < 2 {
		os.Args = append(os.Args, "--help")
	}

	ctx := kong.Parse(&cli)
	logger := newLogger(cli.Verbose)
	defer logger.Sync()
	kpack.SetQuietMode(cli.Quiet)

	if err := run(ctx.Command(), logger, os.Stdout); err != nil {
		logger.Fatal("Failed to run "+ctx.Command(), zap.Error(err))
	}
}

// run executes the parsed command, writing its output to out.
func run(command string, logger *zap.Logger, out io.Writer) error {
	switch command {
	case "show <path>":
		return kpack.Show(logger, out, cli.Show.Path)
	case "tile <path>", "tile <path> <index>":
		return kpack.ShowTile(logger, out, cli.Tile.Path, cli.Tile.Index)
	case "verify <input>":
		if err := kpack.Verify(logger, cli.Verify.Input); err != nil {
			return err
		}
		logger.Info("Pack file is valid", zap.String("path", cli.Verify.Input))
	case "convert <styles> <input> <output>":
		if err := convert(logger); err != nil {
			return fmt.Errorf("convert %s: %w", cli.Convert.Input, err)
		}
	case "version":
		fmt.Fprintf(out, "kpack %s, commit %s, built at %s\n", version, commit, date)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func readWithProgress(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	bar := kpack.NewBytesProgress(fi.Size(), "reading "+fi.Name())
	defer bar.Close()
	var buf bytes.Buffer
	buf.Grow(int(fi.Size()))
	if _, err := io.Copy(io.MultiWriter(&buf, bar), f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func convert(logger *zap.Logger) error {
	c := cli.Convert
	compression, err := kpack.ParseCompression(c.Compression)
	if err != nil {
		return err
	}
	styleData, err := os.ReadFile(c.Styles)
	if err != nil {
		return err
	}
	sheet, err := kpack.ParseStyles(styleData)
	if err != nil {
		return err
	}
	data, err := readWithProgress(c.Input)
	if err != nil {
		return err
	}
	objs, err := kpack.ReadFeatures(data, sheet.Classes)
	if err != nil {
		return err
	}

	p := kpack.New(c.Output, kpack.WithLogger(logger), kpack.WithCompression(compression))
	if c.Borders != "" {
		borderData, err := os.ReadFile(c.Borders)
		if err != nil {
			return err
		}
		borders, err := kpack.ReadBorders(borderData)
		if err != nil {
			return err
		}
		if len(borders) == 0 {
			logger.Warn("No borders found", zap.String("path", c.Borders))
		}
		for _, b := range borders {
			p.AddBorder(b)
		}
	}
	p.SetClasses(sheet.Classes)
	p.SetMips(sheet.MainMip, sheet.TileMip)
	if err := p.SetObjects(objs, c.MaxObjectsPerTile); err != nil {
		return err
	}
	if err := p.Save(); err != nil {
		return err
	}
	logger.Info("Converted",
		zap.String("output", c.Output),
		zap.Int("objects", len(objs)),
		zap.Int("main", p.Main().Len()),
		zap.Int("tiles", p.TileCount()))

	if c.VerifyOutput {
		return kpack.Verify(logger, c.Output)
	}
	return nil
}

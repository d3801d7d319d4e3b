// Command blocks loads a split of labelled point-cloud scenes, draws
// training blocks from it in shuffled batches and tiles held-out scenes for
// inference, optionally exporting tiles, plots and a run record.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/KeyueZhu/XenomatiX/internal/catalog"
	"github.com/KeyueZhu/XenomatiX/internal/config"
	"github.com/KeyueZhu/XenomatiX/internal/fsutil"
	"github.com/KeyueZhu/XenomatiX/internal/loader"
	"github.com/KeyueZhu/XenomatiX/internal/report"
	"github.com/KeyueZhu/XenomatiX/internal/sampler"
	"github.com/KeyueZhu/XenomatiX/internal/scene"
	"github.com/KeyueZhu/XenomatiX/internal/security"
	"github.com/KeyueZhu/XenomatiX/internal/tiler"
	"github.com/KeyueZhu/XenomatiX/internal/version"
)

var (
	dataDir     = flag.String("data", "sample/output", "Directory of Scene_<id>_frame_<n>.npy files")
	catalogPath = flag.String("catalog", "", "SQLite scene catalog; when set, scenes are read from it")
	importDir   = flag.Bool("import", false, "Import -data into -catalog before loading")
	configPath  = flag.String("config", "", "Sampling config JSON (default: "+config.DefaultConfigPath+" if present)")
	splitName   = flag.String("split", "train", "Split to load: train or test")
	testScene   = flag.Int("test-scene", 1, "Scene id held out as the test split")
	substring   = flag.Bool("substring-split", false, "Match the held-out scene by substring (Scene_1 also matches Scene_10)")
	numPoint    = flag.Int("num-point", 4096, "Points per training block")
	blockSize   = flag.Float64("block-size", 1.0, "Training block side length")
	sampleRate  = flag.Float64("sample-rate", 1.0, "Blocks per pass relative to total points / num-point")
	batchSize   = flag.Int("batch", 16, "Batch size")
	workers     = flag.Int("workers", 0, "Batch builder workers (0 builds on the main goroutine)")
	seed        = flag.Uint64("seed", 123, "Random seed")
	epochs      = flag.Int("epochs", 4, "Epochs to iterate")
	tileScenes  = flag.Bool("tile", false, "Tile every loaded scene for whole-scene inference")
	exportDir   = flag.String("export", "", "Write tiled scenes as .npy files into this directory")
	plotDir     = flag.String("plot", "", "Write class distribution and tile charts into this directory")
	recordRun   = flag.Bool("record", false, "Record the run in -catalog")
	verbose     = flag.Bool("v", false, "Enable diagnostic logging")
	trace       = flag.Bool("trace", false, "Enable trace logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// Generator streams outside the range the loader uses for epochs.
const (
	previewStream uint64 = 1 << 63
	tileStream    uint64 = 1<<63 | 1
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("blocks"))
		return
	}

	configureLogging(os.Stderr, *verbose, *trace)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("blocks: %v", err)
	}
}

// configureLogging wires ops to w always and diag/trace on request.
func configureLogging(w io.Writer, diag, tr bool) {
	var diagW, traceW io.Writer
	if diag {
		diagW = w
	}
	if tr {
		traceW = w
	}
	scene.SetLogWriters(w, diagW, traceW)
	sampler.SetLogWriters(w, diagW, traceW)
	tiler.SetLogWriters(w, diagW, traceW)
	loader.SetLogWriters(w, diagW, traceW)
	catalog.SetLogWriters(w, diagW, traceW)
}

// loadConfig reads the config file, then applies flags given explicitly on
// the command line.
func loadConfig() (*config.SamplingConfig, error) {
	cfg := config.EmptySamplingConfig()
	path := *configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}
	if path != "" {
		loaded, err := config.LoadSamplingConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(cfg, set)
	return cfg, cfg.Validate()
}

func applyFlags(cfg *config.SamplingConfig, set map[string]bool) {
	if set["test-scene"] {
		cfg.TestScene = testScene
	}
	if set["substring-split"] {
		exact := !*substring
		cfg.ExactSplit = &exact
	}
	if set["num-point"] {
		cfg.NumPoint = numPoint
	}
	if set["block-size"] {
		cfg.BlockSize = blockSize
	}
	if set["sample-rate"] {
		cfg.SampleRate = sampleRate
	}
	if set["batch"] {
		cfg.BatchSize = batchSize
	}
	if set["workers"] {
		cfg.Workers = workers
	}
	if set["seed"] {
		cfg.Seed = seed
	}
	if set["epochs"] {
		cfg.Epochs = epochs
	}
}

func partition(cfg *config.SamplingConfig, split scene.Split) scene.Partition {
	if cfg.GetExactSplit() {
		return scene.HeldOut(cfg.GetTestScene(), split)
	}
	return scene.SubstringHeldOut(cfg.GetTestScene(), split)
}

func run(ctx context.Context, cfg *config.SamplingConfig, out io.Writer) error {
	started := time.Now()
	split, ok := scene.ParseSplit(*splitName)
	if !ok {
		return fmt.Errorf("unknown split %q", *splitName)
	}

	var (
		src scene.Source = scene.NewDirSource(*dataDir)
		cat *catalog.Catalog
	)
	if *catalogPath != "" {
		c, err := catalog.Open(*catalogPath)
		if err != nil {
			return err
		}
		defer c.Close()
		cat = c
		if *importDir {
			n, err := cat.Import(ctx, src, scene.SceneFiles())
			if err != nil {
				return fmt.Errorf("import %s: %w", *dataDir, err)
			}
			fmt.Fprintf(out, "imported %d scenes from %s\n", n, *dataDir)
		}
		src = cat
	}

	store, err := scene.Load(ctx, src, scene.LoadOptions{
		Partition:  partition(cfg, split),
		NumClasses: cfg.GetNumClasses(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s split: %d scenes, %d points, weights %v\n",
		split, store.Len(), store.TotalPoints(), store.Weights())

	smp, err := sampler.New(store, cfg.SamplerOptions())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "point data size: %d\n", smp.Len())

	numTiles := 0
	if smp.Len() > 0 {
		if err := iterateEpochs(ctx, cfg, smp, out); err != nil {
			return err
		}
	}

	if *tileScenes {
		numTiles, err = tileAll(cfg, store, out)
		if err != nil {
			return err
		}
	}

	if *plotDir != "" {
		pngPath, err := outputPath(*plotDir, split.String()+"_classes.png")
		if err != nil {
			return err
		}
		if err := report.PlotClassDistribution(store.Histogram(), store.Weights(), pngPath); err != nil {
			return err
		}
		if err := writeHTML(filepath.Join(*plotDir, split.String()+"_classes.html"), func(w io.Writer) error {
			return report.RenderClassWeights(w, store.Histogram(), store.Weights())
		}); err != nil {
			return err
		}
	}

	if *recordRun {
		if cat == nil {
			return errors.New("-record requires -catalog")
		}
		id, err := cat.RecordRun(ctx, catalog.Run{
			Split:      split.String(),
			TestScene:  cfg.GetTestScene(),
			ConfigJSON: cfg.JSON(),
			NumScenes:  store.Len(),
			NumSamples: smp.Len(),
			NumTiles:   numTiles,
			StartedAt:  started,
			FinishedAt: time.Now(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "recorded run %s\n", id)
	}
	return nil
}

func iterateEpochs(ctx context.Context, cfg *config.SamplingConfig, smp *sampler.Sampler, out io.Writer) error {
	rng := loader.SeededRand(cfg.GetSeed(), previewStream)
	blk, err := smp.Sample(rng, 0)
	if err != nil {
		return err
	}
	r, c := blk.Data.Dims()
	fmt.Fprintf(out, "point data 0 shape: (%d, %d)\n", r, c)
	fmt.Fprintf(out, "point label 0 shape: (%d,)\n", len(blk.Labels))

	ld, err := loader.New(smp, cfg.LoaderOptions())
	if err != nil {
		return err
	}
	for epoch := 0; epoch < cfg.GetEpochs(); epoch++ {
		end := time.Now()
		err := ld.Epoch(ctx, epoch, func(b loader.Batch) error {
			fmt.Fprintf(out, "time: %d/%d--%.4f\n", b.Number+1, ld.NumBatches(), time.Since(end).Seconds())
			end = time.Now()
			return nil
		})
		if err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
	}
	return nil
}

func tileAll(cfg *config.SamplingConfig, store *scene.Store, out io.Writer) (int, error) {
	tl, err := tiler.New(store, cfg.TilerOptions())
	if err != nil {
		return 0, err
	}
	rng := loader.SeededRand(cfg.GetSeed(), tileStream)
	fsys := fsutil.OSFileSystem{}
	total := 0
	for i := 0; i < tl.Len(); i++ {
		sc := store.Scene(i)
		tiles, err := tl.TileScene(rng, i)
		if err != nil {
			return total, err
		}
		total += tiles.NumTiles()
		fmt.Fprintf(out, "%s: data (%d, %d, %d)\n", sc.Name, tiles.NumTiles(), tiles.BlockPoints(), tiler.Channels)

		base := security.OutputBaseName(sc.Name)
		if *exportDir != "" {
			if _, err := outputPath(*exportDir, base+tiler.DataSuffix); err != nil {
				return total, err
			}
			if err := tiler.Export(fsys, *exportDir, base, tiles); err != nil {
				return total, err
			}
		}
		if *plotDir != "" {
			htmlPath, err := outputPath(*plotDir, base+"_tiles.html")
			if err != nil {
				return total, err
			}
			if err := writeHTML(htmlPath, func(w io.Writer) error {
				return report.RenderTileGrid(w, sc.Name, tiles)
			}); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// outputPath creates dir and returns dir/name once it is confirmed to stay
// inside dir.
func outputPath(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	p := filepath.Join(dir, name)
	if err := security.ValidatePathWithinDirectory(p, dir); err != nil {
		return "", err
	}
	return p, nil
}

func writeHTML(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return render(f)
}

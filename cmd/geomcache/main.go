// geomcache drives the geometry reader outside a renderer: it inspects mesh
// files, converts them to voxel caches and runs the per-frame load cycle
// against an in-memory host.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/geomcache/internal/config"
	"github.com/Faultbox/geomcache/internal/logger"
	"github.com/Faultbox/geomcache/internal/meshfile"
	"github.com/Faultbox/geomcache/internal/render"
	"github.com/Faultbox/geomcache/pkg/formats"
	"github.com/Faultbox/geomcache/pkg/grf"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	args = args[1:]
	logger.Debug("configuration", zap.Any("config", cfg))
	logger.Info("running command", zap.String("command", command), zap.Strings("args", args))

	switch command {
	case "info":
		err = cmdInfo(cfg, args)
	case "render", "run":
		err = cmdRender(cfg)
	case "convert":
		err = cmdConvert(cfg, args)
	case "config":
		err = cmdConfig(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`geomcache - geometry cache reader

Usage:
  geomcache [flags] <command> [args]

Commands:
  info [file]                Show the objects of a mesh file
  render                     Load every frame of the configured range
  convert <in> <out.gvc>     Sample a mesh file into a voxel cache
  config [path]              Write the effective configuration
  help                       Show this help

Flags:
  -config <path>             Config file
  -file <path>               Mesh file (.gvc, .rsm, archive.grf#model.rsm)
  -mtl-defs <path>           Material definitions (YAML or TOML)
  -rules <path>              Material assignment rules (XML)
  -frame <n>                 Single frame instead of the configured range
  -motion-blur               Enable motion blur
  -debug                     Debug logging

Examples:
  geomcache -file scene.gvc info
  geomcache -file scene.gvc -rules rules.xml -frame 12 -motion-blur render
  geomcache -config shot.yaml convert data.grf#data\model\tree.rsm tree.gvc`)
}

// cmdInfo lists the voxels of a mesh file.
func cmdInfo(cfg *config.Config, args []string) error {
	path := cfg.Reader.File
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no mesh file given")
	}

	host := render.NewMemHost()
	file, err := openFile(cfg, path, host)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Printf("File:    %s\n", path)
	if format := detectFormat(path); format != formats.FormatUnknown {
		fmt.Printf("Format:  %s\n", format)
	}
	fmt.Printf("Voxels:  %d\n\n", file.NumVoxels())

	file.SetCurrentFrame(float64(cfg.Render.FrameStart))
	fmt.Printf("%5s  %-28s  %8s  %8s  %s\n", "INDEX", "FLAGS", "VERTS", "FACES", "NAME")
	for i := 0; i < file.NumVoxels(); i++ {
		flags := file.VoxelFlags(i)
		v, err := file.Voxel(i, 0)
		if err != nil {
			fmt.Printf("%5d  %-28s  %s\n", i, flags, err)
			continue
		}

		verts, faces := 0, 0
		if ch := v.Channel(meshfile.ChannelVertices); ch != nil {
			verts = len(ch.Vectors)
		}
		if ch := v.Channel(meshfile.ChannelFaces); ch != nil {
			faces = len(ch.Ints) / 3
		}
		name, _ := host.Lookup(v.NameID)
		file.ReleaseVoxel(v)

		fmt.Printf("%5d  %-28s  %8d  %8d  %s\n", i, flags, verts, faces, name)
	}
	return nil
}

// cmdRender runs the reader over the configured frame range.
func cmdRender(cfg *config.Config) error {
	if cfg.Reader.File == "" {
		return fmt.Errorf("no mesh file given")
	}
	host := render.NewMemHost()
	return runFrames(cfg, host, os.Stdout)
}

// cmdConvert samples every frame of the configured range into a GVC file.
func cmdConvert(cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: convert <in> <out.gvc>")
	}
	in, out := args[0], args[1]
	if !strings.EqualFold(filepath.Ext(out), ".gvc") {
		return fmt.Errorf("output must be a .gvc file: %s", out)
	}

	host := render.NewMemHost()
	file, err := openFile(cfg, in, host)
	if err != nil {
		return err
	}
	defer file.Close()

	frames := make([]float64, 0, cfg.Render.FrameEnd-cfg.Render.FrameStart+1)
	for f := cfg.Render.FrameStart; f <= cfg.Render.FrameEnd; f++ {
		frames = append(frames, float64(f))
	}

	cache, err := meshfile.ExportGVC(file, host, frames, cfg.Render.FPS)
	if err != nil {
		return fmt.Errorf("converting %s: %w", in, err)
	}
	if err := formats.WriteGVCFile(out, cache); err != nil {
		return err
	}

	fmt.Printf("Wrote %s: %d voxels, %d frames\n", out, len(cache.Voxels), len(frames))
	return nil
}

// cmdConfig writes the effective configuration.
func cmdConfig(cfg *config.Config, args []string) error {
	path := config.DefaultPath()
	if len(args) > 0 {
		path = args[0]
	}
	if err := cfg.SaveTo(path); err != nil {
		return err
	}
	fmt.Printf("Saved config to %s\n", path)
	return nil
}

// openFile opens and initializes a decoder for path.
func openFile(cfg *config.Config, path string, st render.StringTable) (meshfile.MeshFile, error) {
	file, err := meshfile.Open(path)
	if err != nil {
		return nil, err
	}
	file.SetStringTable(st)
	file.SetThreadPool(threadPool(cfg.Decoder.Workers))
	file.SetUseFullNames(true)
	file.SetFramesPerSecond(cfg.Render.FPS)
	if err := file.Init(); err != nil {
		return nil, fmt.Errorf("initializing %s: %w", path, err)
	}
	return file, nil
}

func threadPool(workers int) render.ThreadPool {
	if workers == 0 {
		return render.Inline{}
	}
	return render.NewWorkerPool(workers)
}

// detectFormat sniffs a plain file on disk. Archive entries are not read.
func detectFormat(path string) formats.Format {
	if _, _, ok := grf.SplitPath(path); ok {
		return formats.FormatRSM
	}
	f, err := os.Open(path)
	if err != nil {
		return formats.FormatUnknown
	}
	defer f.Close()

	head := make([]byte, 8)
	n, _ := f.Read(head)
	return formats.Detect(head[:n])
}

func formatTimes(times []float64) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = strconv.FormatFloat(t, 'g', 4, 64)
	}
	return strings.Join(parts, ",")
}

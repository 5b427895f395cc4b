package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagFile       = flag.String("file", "", "Mesh file to read")
	flagRules      = flag.String("rules", "", "Material assignment rules file")
	flagMtlDefs    = flag.String("mtl-defs", "", "Material definitions file")
	flagFrame      = flag.Int("frame", -1, "Render a single frame")
	flagMotionBlur = flag.Bool("motion-blur", false, "Enable motion blur")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagFile != "" {
		cfg.Reader.File = *flagFile
	}
	if *flagRules != "" {
		cfg.Reader.MtlAssignmentsFile = *flagRules
	}
	if *flagMtlDefs != "" {
		cfg.Reader.MtlDefsFile = *flagMtlDefs
	}
	if *flagFrame >= 0 {
		cfg.Render.FrameStart = *flagFrame
		cfg.Render.FrameEnd = *flagFrame
	}
	if *flagMotionBlur {
		cfg.Render.MotionBlur.On = true
	}
}

// Package config holds the settings of the frameloop binary.
//
// Values are layered: built-in defaults, then a .env file, then FRAMELOOP_*
// environment variables, then command-line flags. Every setting has a flag,
// and its environment variable is the flag name upper-cased with dashes
// turned into underscores: -log-level is FRAMELOOP_LOG_LEVEL.
package config

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const EnvPrefix = "FRAMELOOP_"

type Config struct {
	Title  string
	Width  int
	Height int
	Debug  bool

	VertexShader   string
	FragmentShader string
	// Mesh is an optional OBJ file. Empty draws the built-in quad.
	Mesh string

	Uniforms bool
	Animate  bool

	// Frames stops after that many frames when positive.
	Frames int
	// Interactive draws one frame per line read from stdin.
	Interactive bool

	LogLevel string
}

func Default() Config {
	return Config{
		Title:          "frameloop",
		Width:          500,
		Height:         500,
		VertexShader:   "shaders/vert.spv",
		FragmentShader: "shaders/frag.spv",
		Uniforms:       true,
		Animate:        true,
		LogLevel:       "info",
	}
}

// Source says where Load looks besides the command line.
type Source struct {
	// EnvFile defaults to ".env". A missing file is not an error.
	EnvFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
	// Output receives flag usage and parse errors. Defaults to os.Stderr.
	Output io.Writer
}

// Load reads the configuration from the process environment and args,
// which should not include the program name.
func Load(name string, args []string) (Config, error) {
	return Source{}.Load(name, args)
}

func (s Source) Load(name string, args []string) (Config, error) {
	if s.EnvFile == "" {
		s.EnvFile = ".env"
	}
	if s.LookupEnv == nil {
		s.LookupEnv = os.LookupEnv
	}
	if s.Output == nil {
		s.Output = os.Stderr
	}

	cfg := Default()
	flags := cfg.FlagSet(name)
	flags.SetOutput(s.Output)

	dotenv, err := godotenv.Read(s.EnvFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrapf(err, "read %s", s.EnvFile)
	}

	var setErr error
	flags.VisitAll(func(f *flag.Flag) {
		if setErr != nil {
			return
		}
		key := EnvKey(f.Name)
		value, ok := s.LookupEnv(key)
		if !ok {
			value, ok = dotenv[key]
		}
		if !ok {
			return
		}
		if err := flags.Set(f.Name, value); err != nil {
			setErr = errors.Wrapf(err, "invalid %s", key)
		}
	})
	if setErr != nil {
		return Config{}, setErr
	}

	if err := flags.Parse(args); err != nil {
		return Config{}, errors.Wrap(err, "parse flags")
	}
	if flags.NArg() > 0 {
		return Config{}, errors.Newf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}

	return cfg, cfg.Validate()
}

// FlagSet binds a flag to every field of c. Parsing it overwrites c.
func (c *Config) FlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&c.Title, "title", c.Title, "window title")
	fs.IntVar(&c.Width, "width", c.Width, "window width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "window height in pixels")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable the validation layer and debug messenger")
	fs.StringVar(&c.VertexShader, "vert", c.VertexShader, "SPIR-V vertex shader")
	fs.StringVar(&c.FragmentShader, "frag", c.FragmentShader, "SPIR-V fragment shader")
	fs.StringVar(&c.Mesh, "mesh", c.Mesh, "OBJ file to draw instead of the built-in quad")
	fs.BoolVar(&c.Uniforms, "uniforms", c.Uniforms, "bind a model/view/projection uniform buffer")
	fs.BoolVar(&c.Animate, "animate", c.Animate, "rotate the model every frame")
	fs.IntVar(&c.Frames, "frames", c.Frames, "stop after this many frames (0 runs until the window closes)")
	fs.BoolVar(&c.Interactive, "interactive", c.Interactive, "draw a frame per line on stdin, q quits")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "logrus level")
	return fs
}

func EnvKey(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Newf("window size %dx%d must be positive", c.Width, c.Height)
	}
	if c.Frames < 0 {
		return errors.Newf("frame count %d is negative", c.Frames)
	}
	if c.Frames > 0 && c.Interactive {
		return errors.New("frames and interactive are mutually exclusive")
	}
	if c.VertexShader == "" || c.FragmentShader == "" {
		return errors.New("both shader paths are required")
	}
	if c.Animate && !c.Uniforms {
		return errors.New("animate needs uniforms")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log level")
	}
	return nil
}

// Level is the parsed LogLevel. Call it on a validated Config.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

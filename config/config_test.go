package config_test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/frameloop/config"
)

func source(c *qt.C, dotenv string, env map[string]string) config.Source {
	path := filepath.Join(c.TempDir(), ".env")
	if dotenv != "" {
		c.Assert(os.WriteFile(path, []byte(dotenv), 0o644), qt.IsNil)
	}
	return config.Source{
		EnvFile: path,
		LookupEnv: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
		Output: &bytes.Buffer{},
	}
}

func TestDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := source(c, "", nil).Load("frameloop", nil)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg, qt.DeepEquals, config.Default())
	c.Assert(cfg.Level(), qt.Equals, logrus.InfoLevel)
}

func TestLayering(t *testing.T) {
	c := qt.New(t)

	dotenv := "FRAMELOOP_WIDTH=640\nFRAMELOOP_HEIGHT=480\nFRAMELOOP_TITLE=from-dotenv\n"
	env := map[string]string{
		"FRAMELOOP_HEIGHT":    "360",
		"FRAMELOOP_LOG_LEVEL": "debug",
		"FRAMELOOP_DEBUG":     "true",
	}
	cfg, err := source(c, dotenv, env).Load("frameloop", []string{"-title", "from-flag", "-frames", "10"})
	c.Assert(err, qt.IsNil)

	c.Assert(cfg.Width, qt.Equals, 640)
	c.Assert(cfg.Height, qt.Equals, 360)
	c.Assert(cfg.Title, qt.Equals, "from-flag")
	c.Assert(cfg.Debug, qt.IsTrue)
	c.Assert(cfg.Frames, qt.Equals, 10)
	c.Assert(cfg.Level(), qt.Equals, logrus.DebugLevel)
}

func TestInvalidEnvironmentValue(t *testing.T) {
	c := qt.New(t)

	_, err := source(c, "", map[string]string{"FRAMELOOP_FRAMES": "many"}).Load("frameloop", nil)
	c.Assert(err, qt.ErrorMatches, `invalid FRAMELOOP_FRAMES: .*`)
}

func TestHelp(t *testing.T) {
	c := qt.New(t)

	_, err := source(c, "", nil).Load("frameloop", []string{"-h"})
	c.Assert(errors.Is(err, flag.ErrHelp), qt.IsTrue)
}

func TestStrayArguments(t *testing.T) {
	c := qt.New(t)

	_, err := source(c, "", nil).Load("frameloop", []string{"extra"})
	c.Assert(err, qt.ErrorMatches, `unexpected arguments: extra`)
}

func TestEnvKey(t *testing.T) {
	c := qt.New(t)
	c.Assert(config.EnvKey("log-level"), qt.Equals, "FRAMELOOP_LOG_LEVEL")
	c.Assert(config.EnvKey("vert"), qt.Equals, "FRAMELOOP_VERT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		err    string
	}{
		{"zero width", func(cfg *config.Config) { cfg.Width = 0 }, `window size 0x500 must be positive`},
		{"negative height", func(cfg *config.Config) { cfg.Height = -1 }, `window size 500x-1 must be positive`},
		{"negative frames", func(cfg *config.Config) { cfg.Frames = -3 }, `frame count -3 is negative`},
		{"frames and interactive", func(cfg *config.Config) { cfg.Frames = 2; cfg.Interactive = true }, `frames and interactive are mutually exclusive`},
		{"no shader", func(cfg *config.Config) { cfg.FragmentShader = "" }, `both shader paths are required`},
		{"animate without uniforms", func(cfg *config.Config) { cfg.Uniforms = false }, `animate needs uniforms`},
		{"bad level", func(cfg *config.Config) { cfg.LogLevel = "loud" }, `log level: .*`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := qt.New(t)
			cfg := config.Default()
			test.modify(&cfg)
			c.Assert(cfg.Validate(), qt.ErrorMatches, test.err)
		})
	}

	qt.New(t).Assert(config.Default().Validate(), qt.IsNil)
}

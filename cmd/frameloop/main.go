// Command frameloop opens a window and draws an indexed mesh into it with
// the renderer, either continuously, for a fixed number of frames, or one
// frame per line typed on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vkngwrapper/frameloop/config"
	"github.com/vkngwrapper/frameloop/gpu/vkng"
	"github.com/vkngwrapper/frameloop/mesh"
	"github.com/vkngwrapper/frameloop/mesh/objmesh"
	"github.com/vkngwrapper/frameloop/renderer"
	"github.com/vkngwrapper/frameloop/shader"
	"github.com/vkngwrapper/frameloop/window/sdlwindow"
)

// pumpInterval is how often window events are polled while waiting for
// stdin in interactive mode.
const pumpInterval = 16 * time.Millisecond

func init() {
	// SDL and the presentation engine want the thread that created the window.
	runtime.LockOSThread()
}

func main() {
	log := logrus.New()
	if err := run(log, os.Args[1:], os.Stdin); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(log *logrus.Logger, args []string, stdin io.Reader) error {
	cfg, err := config.Load("frameloop", args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	log.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	window, err := sdlwindow.Open(cfg.Title, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	defer window.Close()

	loader, err := vkng.NewLoader(window.ProcAddr(), log.WithField("component", "vkng"))
	if err != nil {
		return err
	}

	var shaders renderer.Shaders
	if shaders.Vertex, err = shader.Load(cfg.VertexShader); err != nil {
		return err
	}
	if shaders.Fragment, err = shader.Load(cfg.FragmentShader); err != nil {
		return err
	}

	var m *mesh.Mesh
	if cfg.Mesh != "" {
		loaded, err := objmesh.Load(cfg.Mesh)
		if err != nil {
			return err
		}
		m = &loaded
	}

	r, err := renderer.New(loader, window, shaders, renderer.Options{
		Debug:           cfg.Debug,
		Mesh:            m,
		Uniforms:        cfg.Uniforms,
		Animate:         cfg.Animate,
		Logger:          log.WithField("component", "renderer"),
		ApplicationName: cfg.Title,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Dispose(); err != nil {
			log.WithError(err).Error("dispose renderer")
		}
	}()

	start := hrtime.Now()
	switch {
	case cfg.Frames > 0:
		err = drawFrames(ctx, r, window, cfg.Frames)
	case cfg.Interactive:
		err = drawOnInput(ctx, r, window, stdin)
	default:
		err = drawUntilClosed(ctx, r, window)
	}

	elapsed := hrtime.Since(start)
	fields := logrus.Fields{"frames": r.Frames(), "elapsed": elapsed}
	if elapsed > 0 {
		fields["fps"] = float64(r.Frames()) / elapsed.Seconds()
	}
	log.WithFields(fields).Info("done")
	return err
}

func drawFrames(ctx context.Context, r *renderer.Renderer, window *sdlwindow.Window, n int) error {
	for i := 0; i < n; i++ {
		if ctx.Err() != nil || window.PollEvents() {
			return nil
		}
		if err := r.DrawFrame(); err != nil {
			return err
		}
	}
	return nil
}

func drawUntilClosed(ctx context.Context, r *renderer.Renderer, window *sdlwindow.Window) error {
	for ctx.Err() == nil && !window.PollEvents() {
		if err := r.DrawFrame(); err != nil {
			return err
		}
	}
	return nil
}

// drawOnInput draws a frame for every line on stdin and stops at a line
// reading q, at end of input, or when the window closes. Drawing stays on
// the locked thread; only the reading happens in the group.
func drawOnInput(ctx context.Context, r *renderer.Renderer, window *sdlwindow.Window, stdin io.Reader) error {
	g, gctx := errgroup.WithContext(ctx)
	ticks := make(chan struct{})
	g.Go(func() error {
		defer close(ticks)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			if strings.TrimSpace(scanner.Text()) == "q" {
				return nil
			}
			select {
			case ticks <- struct{}{}:
			case <-gctx.Done():
				return nil
			}
		}
		return errors.Wrap(scanner.Err(), "read stdin")
	})

	pump := time.NewTicker(pumpInterval)
	defer pump.Stop()
	for {
		select {
		case _, ok := <-ticks:
			if !ok {
				return g.Wait()
			}
			if err := r.DrawFrame(); err != nil {
				return err
			}
		case <-pump.C:
			if window.PollEvents() {
				// The reader may be blocked in Scan; it ends with the process.
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

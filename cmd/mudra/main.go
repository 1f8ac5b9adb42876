// Command mudra turns fingerspelled signs in front of the webcam into text.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/log"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	noTray := flag.Bool("no-tray", false, "run without the system tray")
	flag.Parse()

	if err := run(*configPath, *addr, *noTray); err != nil {
		fmt.Fprintln(os.Stderr, "mudra:", err)
		os.Exit(1)
	}
}

func run(configPath, addr string, noTray bool) error {
	cfg, err := config.LoadWithFallback(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if noTray {
		cfg.Tray.Enabled = false
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = findWebDir()
	}

	logger := log.Init(cfg.Log.Level)

	a, err := app.New(cfg, app.Options{Logger: logger})
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		a.Stop()
		return err
	}

	srv := server.New(server.Config{
		StaticDir:  cfg.Server.StaticDir,
		Controller: a.Pipeline(),
		Preview:    a.Frames(),
		History:    a.Journal(),
		Inset:      cfg.Pipeline.Inset,
		Logger:     logger,
	})
	go func() {
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
			logger.Error("server failed", "err", err)
		}
	}()

	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("server shutdown", "err", err)
			}
			if err := a.Stop(); err != nil {
				logger.Warn("app shutdown", "err", err)
			}
		})
	}

	if !cfg.Tray.Enabled {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		shutdown()
		return nil
	}

	// The tray must own the main thread.
	t := tray.New(a.Pipeline())
	a.Pipeline().OnEvent(t.Update)
	t.OnOpen(func() { openBrowser(previewURL(cfg.Server.Addr)) })
	t.OnQuit(shutdown)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		t.Quit()
	}()

	t.Run()
	shutdown()
	return nil
}

// findWebDir searches for the web directory in common locations.
// It checks "web", "../web" and ~/.mudra/web, returning "" if none exist.
func findWebDir() string {
	for _, p := range []string{"web", "../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, ".mudra", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}

func previewURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.L().Warn("failed to open browser", "url", url, "err", err)
	}
}

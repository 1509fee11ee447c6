//go:build windows && !dev

package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/getlantern/systray"

	"github.com/sakondev/drg-inventory/internal/aggregate"
)

//go:embed assets/icon.ico
var iconData []byte

func main() {
	a, err := bootstrap(".env", false)
	if err != nil {
		panic(err)
	}
	log := a.log

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := a.syncer()
	if err != nil {
		log.Fatal().Err(err).Msg("syncer init failed")
	}

	// stop the schedule and the tray on a signal
	go func() {
		<-ctx.Done()
		s.Stop()
		systray.Quit()
	}()

	tooltip := func(state string) {
		systray.SetTooltip(fmt.Sprintf("DRG Inventory %s - %s", ver, state))
	}

	systray.Run(func() {
		if len(iconData) > 0 {
			systray.SetIcon(iconData)
		}
		tooltip("idle")

		mStart := systray.AddMenuItem("Start schedule", "Run the pipeline every interval")
		mStop := systray.AddMenuItem("Stop schedule", "Stop the periodic runs")
		mStop.Disable()
		mRun := systray.AddMenuItem("Run now", "Fetch and aggregate once")

		systray.AddSeparator()
		mOpenOut := systray.AddMenuItem("Open "+aggregate.OutputFile, "")
		mOpenLogs := systray.AddMenuItem("Open logs", "Show the log file")
		mOpenCfg := systray.AddMenuItem("Settings (sources.json)", "Open the sources file")
		mReload := systray.AddMenuItem("Reload settings", "Re-read sources.json")
		systray.AddSeparator()
		mQuit := systray.AddMenuItem("Quit", "Close the application")

		start := func() {
			if err := s.Start(ctx); err != nil {
				log.Error().Err(err).Msg("start failed")
				tooltip("start failed")
				return
			}
			mStart.Disable()
			mStop.Enable()
			tooltip("running")
		}
		if a.cfg.AutoStart {
			start()
		}

		go func() {
			for {
				select {
				case <-mStart.ClickedCh:
					start()

				case <-mStop.ClickedCh:
					s.Stop()
					mStop.Disable()
					mStart.Enable()
					tooltip("stopped")

				case <-mRun.ClickedCh:
					mRun.Disable()
					go func() {
						defer mRun.Enable()
						if _, err := s.RunNow(ctx); err != nil {
							tooltip("last run failed")
							return
						}
						tooltip(fmt.Sprintf("last run %s", s.Last().At.Format("15:04")))
					}()

				case <-mOpenOut.ClickedCh:
					openInExplorer(filepath.Join(a.env.OutputDir, aggregate.OutputFile))

				case <-mOpenLogs.ClickedCh:
					openInExplorer(a.env.LogFile)

				case <-mOpenCfg.ClickedCh:
					openInExplorer(a.cfgPath)

				case <-mReload.ClickedCh:
					cfg, err := a.reload()
					if err != nil {
						log.Error().Err(err).Msg("reload failed")
						continue
					}
					if err := s.UpdateConfig(cfg); err != nil {
						log.Error().Err(err).Msg("config rejected")
						continue
					}
					log.Info().Msg("settings reloaded")

				case <-mQuit.ClickedCh:
					cancel()
					s.Stop()
					systray.Quit()
					return
				}
			}
		}()
	}, func() {
		a.close()
	})
}

// openInExplorer opens a file or folder in the default application.
func openInExplorer(path string) {
	switch runtime.GOOS {
	case "windows":
		// "start" needs cmd /C and an empty window title
		_ = exec.Command("cmd", "/C", "start", "", path).Start()
	case "darwin":
		_ = exec.Command("open", path).Start()
	default:
		_ = exec.Command("xdg-open", path).Start()
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/moodcam/moodcam/server"
)

func main() {
	parser := argparse.NewParser("moodcam", "Self-hosted video diary with live emotion analysis")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Configuration file", Default: ""})
	port := parser.String("p", "port", &argparse.Options{Help: "HTTP listen address", Default: ":8080"})
	modelName := parser.String("", "model", &argparse.Options{Help: "Emotion classifier model name", Default: ""})
	noDownload := parser.Flag("", "nodownload", &argparse.Options{Help: "Never download model files", Default: false})
	hotReloadWWW := parser.Flag("", "hot", &argparse.Options{Help: "Hot reload www instead of embedding into binary", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := server.LoadConfig(*configFile)
	if err != nil {
		logger.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}
	if *modelName != "" {
		cfg.Model.Name = *modelName
	}
	if *noDownload {
		cfg.Model.DownloadURL = ""
	}

	flags := 0
	if *hotReloadWWW {
		flags |= server.ServerFlagHotReloadWWW
	}
	srv, err := server.NewServer(logger, cfg, flags)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.LoadModelBackground()
	srv.ListenForKillSignals()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if cfg.HTTPS.Hostname != "" {
		err = srv.ListenHTTPS()
	} else {
		err = srv.ListenHTTP(*port)
	}
	if err != nil {
		logger.Infof("Listen returned: %v", err)
	}
}

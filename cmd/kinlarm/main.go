package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/marcan/kinlarm/internal/config"
	"github.com/marcan/kinlarm/internal/controller"
	"github.com/marcan/kinlarm/internal/device"
	"github.com/marcan/kinlarm/internal/frame"
	"github.com/marcan/kinlarm/internal/hub"
	"github.com/marcan/kinlarm/internal/motion"
	"github.com/marcan/kinlarm/internal/notify"
	"github.com/marcan/kinlarm/internal/sounder"
	"github.com/marcan/kinlarm/internal/webui"
)

func main() {
	var (
		configF = flag.String("config", "config.yaml", "path to the YAML configuration file")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[kinlarm] ", log.Ltime)

	cfg, err := config.Load(*configF)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	motionCfg := motion.DefaultConfig()
	motionCfg.ZThreshold = cfg.ZThreshold
	motionCfg.MotionThreshold = cfg.MotionThreshold
	motionCfg.LostThreshold = cfg.LostThreshold
	motionCfg.ValidThreshold = cfg.ValidThreshold
	motionCfg.DecayK = cfg.DecayK

	if clip, err := frame.LoadClipMask(cfg.ClipMaskPath); err != nil {
		logger.Printf("no clip mask loaded from %s: %v", cfg.ClipMaskPath, err)
	} else {
		motionCfg.ClipMask = clip
		logger.Printf("clip mask loaded from %s", cfg.ClipMaskPath)
	}

	drv := device.NewSimulated()
	h := hub.New(drv, cfg.InvertKinect, logger)
	go h.Run()

	notifier := notify.New(notify.Config{
		Server:   cfg.SMTPServer,
		Port:     cfg.SMTPPort,
		TLS:      cfg.SMTPTLS,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		To:       cfg.MailTo,
		Template: cfg.MailTemplate,
	})

	snd := buildSounder(cfg)

	timers := controller.Timers{
		ArmTime:       cfg.ArmTime,
		PrealarmGrace: cfg.PrealarmGrace,
		NotifyTimeout: cfg.NotifyTimeout,
	}
	ctl := controller.New(h, notifier, snd, motionCfg, timers, logger)

	passHash, err := webui.HashPassword(cfg.Password)
	if err != nil {
		logger.Fatalf("hash web password: %v", err)
	}
	web := webui.New(webui.Config{
		Addr:         net.JoinHostPort("", strconv.Itoa(cfg.WebPort)),
		Username:     cfg.Username,
		PasswordHash: passHash,
		StaticDir:    "static",
	}, h, ctl, logger)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-sigc)
	}()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		errc <- ctl.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := web.ListenAndServe(); err != nil {
			errc <- err
		}
	}()

	logger.Printf("exiting (%v)", <-errc)
	cancel()
	web.Close()
	h.Stop()
	wg.Wait()
	logger.Println("exited")
}

func buildSounder(cfg *config.Config) sounder.Sounder {
	if cfg.SerialPort != "" {
		return sounder.NewSerial(cfg.SerialPort, 9600)
	}
	return sounder.NewProcess(cfg.PlaybackCommand)
}

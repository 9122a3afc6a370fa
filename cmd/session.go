// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Thermoquad/tunestat/pkg/bus"
	"github.com/Thermoquad/tunestat/pkg/capture"
	"github.com/Thermoquad/tunestat/pkg/config"
	"github.com/Thermoquad/tunestat/pkg/firmware"
	"github.com/Thermoquad/tunestat/pkg/frontend"
)

// session bundles everything a device command needs: the bus, the frontend
// driving it and the capture sinks watching it.
type session struct {
	cfg   *config.Config
	bus   bus.Closer
	info  string
	fe    *frontend.Frontend
	stats *capture.Statistics
	log   *zap.Logger

	file *capture.FileLogger
}

// sessionOptions extend a session beyond the defaults.
type sessionOptions struct {
	onLock   func(frontend.TuneRequest, frontend.LockResult)
	observer frontend.TuneObserver

	// quiet discards console logging; capture sinks still run.
	quiet bool
}

// openSession loads the profile, opens the bus and builds the frontend.
func openSession(opts sessionOptions) (*session, error) {
	log := newLogger()
	if opts.quiet {
		log = zap.NewNop()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	fw := firmware.NewRegistry(cfg.Firmware.LineSize)
	if cfg.Firmware.Dir != "" {
		n, err := fw.LoadDir(cfg.Firmware.Dir)
		if err != nil {
			return nil, err
		}
		log.Debug("firmware patches loaded", zap.Int("count", n), zap.String("dir", cfg.Firmware.Dir))
	}

	b, info, err := OpenBus(cfg.Bridge, log)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:   cfg,
		bus:   b,
		info:  info,
		stats: capture.NewStatistics(),
		log:   log,
	}

	sinks := []capture.Logger{s.stats, capture.NewZapLogger(log.Named("bus"))}
	if captureFile != "" {
		s.file, err = capture.NewFileLogger(captureFile)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("capture file: %w", err)
		}
		sinks = append(sinks, s.file)
	}

	sink := capture.NewMultiLogger(sinks...)
	s.fe = frontend.New(recordBus(b, sink, captureFile != "" || verbose), frontend.Options{
		Config:   cfg,
		Firmware: fw,
		Log:      log.Named("frontend"),
		Capture:  sink,
		OnLock:   opts.onLock,
		Observer: opts.observer,
	})
	return s, nil
}

// recordBus wraps b so raw transfers reach sink when raw is set.
func recordBus(b bus.Bus, sink capture.Logger, raw bool) bus.Bus {
	if !raw {
		return b
	}
	return bus.NewRecorder(b, sink)
}

// Close releases the bus and the capture file.
func (s *session) Close() error {
	err := s.bus.Close()
	if s.file != nil {
		if ferr := s.file.Close(); err == nil {
			err = ferr
		}
	}
	_ = s.log.Sync()
	return err
}

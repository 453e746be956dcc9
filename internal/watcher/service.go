package watcher

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// TriggerFunc requests a link pass. It must not block.
type TriggerFunc func() error

// Service triggers a pass whenever one of the rule store files changes.
type Service struct {
	watcher  *Watcher
	trigger  TriggerFunc
	logger   zerolog.Logger
	triggers atomic.Int64
}

// NewService creates a watcher service for the given files.
func NewService(config Config, files []string, trigger TriggerFunc, logger zerolog.Logger) (*Service, error) {
	s := &Service{
		trigger: trigger,
		logger:  logger.With().Str("component", "watcher-service").Logger(),
	}
	w, err := New(config, s.handleEvents, logger)
	if err != nil {
		return nil, err
	}
	s.watcher = w

	for _, f := range files {
		if f == "" {
			continue
		}
		if err := w.AddFile(f); err != nil {
			s.logger.Warn().Err(err).Str("path", f).Msg("Failed to watch file")
		}
	}

	return s, nil
}

// Start begins watching.
func (s *Service) Start() {
	s.watcher.Start()
	s.logger.Info().Strs("files", s.watcher.WatchedFiles()).Msg("Watcher service started")
}

// Stop stops the watcher service.
func (s *Service) Stop() error {
	return s.watcher.Stop()
}

// Triggers reports how many passes have been requested.
func (s *Service) Triggers() int64 {
	return s.triggers.Load()
}

func (s *Service) handleEvents(events []FileEvent) {
	if s.trigger == nil {
		return
	}

	paths := make([]string, len(events))
	for i, e := range events {
		paths[i] = e.Path
	}

	s.triggers.Add(1)
	if err := s.trigger(); err != nil {
		// A pass already in flight will pick up the new rules next time.
		s.logger.Debug().Err(err).Strs("files", paths).Msg("Pass not triggered")
		return
	}
	s.logger.Info().Strs("files", paths).Msg("Rules changed, pass triggered")
}

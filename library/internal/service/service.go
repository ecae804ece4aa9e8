package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/model"
	libraryRepo "github.com/Astemirdum/library-desk/library/internal/repository"
	"github.com/Astemirdum/library-desk/pkg/kafka"
)

type Service struct {
	log       *zap.Logger
	repo      libraryRepo.Repository
	publisher kafka.Publisher
	now       func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, which decides "today" for loans and returns.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo libraryRepo.Repository, publisher kafka.Publisher, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:       log.Named("service"),
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = kafka.NopPublisher{}
	}
	return s
}

// Today is the current calendar date.
func (s *Service) Today() time.Time {
	return model.Today(s.now())
}

// publish never fails the caller: the action it reports is already committed.
func (s *Service) publish(ctx context.Context, event kafka.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("publish event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/monetalabs/moneta/internal/application/ports"
	"github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/infrastructure/logging"
	"github.com/monetalabs/moneta/internal/infrastructure/tracing"
)

// Config carries the chat routing knobs.
type Config struct {
	TripThreshold    int           // Consecutive primary failures before tripping
	RecoveryInterval time.Duration // Wait before probing a tripped primary
	HistoryLimit     int           // Turns of context replayed per send
}

// Service routes sends between the primary and fallback providers and
// persists every turn, including failed ones, to the chat log.
type Service struct {
	primary  ports.ChatProviderPort
	fallback ports.ChatProviderPort
	log      ports.ChatLogPort
	identity ports.IdentityPort
	config   Config
	logger   *logging.Logger
	tracer   *tracing.Tracer

	breaker *Breaker
}

// NewService creates a chat service. The fallback provider may be nil;
// primary and the chat log may not.
func NewService(
	primary, fallback ports.ChatProviderPort,
	log ports.ChatLogPort,
	identity ports.IdentityPort,
	config Config,
	logger *logging.Logger,
	tracer *tracing.Tracer,
) (*Service, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary provider cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("chat log cannot be nil")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity port cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if tracer == nil {
		tracer = tracing.Default()
	}

	return &Service{
		primary:  primary,
		fallback: fallback,
		log:      log,
		identity: identity,
		config:   config,
		logger:   logger,
		tracer:   tracer,
		breaker:  NewBreaker(config.TripThreshold, config.RecoveryInterval),
	}, nil
}

// BreakerState exposes the primary provider's breaker position for the
// status surface.
func (s *Service) BreakerState() BreakerState {
	return s.breaker.State()
}

// Send persists the user's prompt, routes it to a provider, and persists
// the reply. A failed send is recorded in the log as an error turn and the
// error is returned to the caller.
func (s *Service) Send(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", errors.NewError(errors.CodeValidation, "prompt cannot be empty", nil)
	}
	userID := s.currentUser()
	ctx = logging.WithUserID(ctx, userID)

	history, err := s.log.History(ctx, userID, s.config.HistoryLimit)
	if err != nil {
		return "", errors.NewError(errors.CodeStorage, "failed to load chat history", err)
	}

	if _, err := s.log.Append(ctx, &ledger.ChatMessage{
		UserID:    userID,
		Role:      ledger.ChatRoleUser,
		Content:   prompt,
		Timestamp: ledger.NowMillis(),
	}); err != nil {
		return "", errors.NewError(errors.CodeStorage, "failed to persist prompt", err)
	}

	reply, sendErr := s.route(ctx, history, prompt)
	if sendErr != nil {
		s.appendAssistant(ctx, userID, sendErr.Error(), true)
		return "", sendErr
	}

	s.appendAssistant(ctx, userID, reply, false)
	return reply, nil
}

// route tries the primary when its breaker allows, then the fallback.
func (s *Service) route(ctx context.Context, history []*ledger.ChatMessage, prompt string) (string, error) {
	var lastErr error

	if s.breaker.Allow() {
		reply, err := s.send(ctx, s.primary, history, prompt, false)
		if err == nil {
			s.breaker.RecordSuccess()
			return reply, nil
		}
		s.breaker.RecordFailure()
		lastErr = err
		s.logger.WarnContext(ctx, "primary chat provider failed",
			"provider", s.primary.Name(),
			"breaker", string(s.breaker.State()),
			"error", err.Error(),
		)
	}

	if s.fallback != nil {
		reply, err := s.send(ctx, s.fallback, history, prompt, true)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		s.logger.WarnContext(ctx, "fallback chat provider failed",
			"provider", s.fallback.Name(),
			"error", err.Error(),
		)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("primary tripped and no fallback configured")
	}
	return "", errors.NewError(errors.CodeRemote, "chat send failed", lastErr)
}

func (s *Service) send(ctx context.Context, provider ports.ChatProviderPort, history []*ledger.ChatMessage, prompt string, isFallback bool) (string, error) {
	ctx, span := s.tracer.StartChatSpan(ctx, provider.Name(), "")
	span.SetFallback(isFallback)

	reply, err := provider.Send(ctx, history, prompt)
	if err != nil {
		span.EndWithError(err)
		return "", err
	}
	span.End()
	return reply, nil
}

func (s *Service) appendAssistant(ctx context.Context, userID, content string, isError bool) {
	if _, err := s.log.Append(ctx, &ledger.ChatMessage{
		UserID:    userID,
		Role:      ledger.ChatRoleAssistant,
		Content:   content,
		Timestamp: ledger.NowMillis(),
		IsError:   isError,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist assistant turn", "error", err.Error())
	}
}

// History returns the current user's chat log, oldest first.
func (s *Service) History(ctx context.Context, limit int) ([]*ledger.ChatMessage, error) {
	return s.log.History(ctx, s.currentUser(), limit)
}

// Clear wipes the current user's chat log.
func (s *Service) Clear(ctx context.Context) error {
	return s.log.Clear(ctx, s.currentUser())
}

func (s *Service) currentUser() string {
	if userID, ok := s.identity.CurrentUserID(); ok {
		return userID
	}
	return ledger.LocalUserID
}

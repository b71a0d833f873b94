package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xconn/xconn-go/pkg/account"
	"github.com/xconn/xconn-go/pkg/config"
	"github.com/xconn/xconn-go/pkg/connection"
	"github.com/xconn/xconn-go/pkg/transport"
)

// Session is the connection machinery of one account.
type Session struct {
	item       *connection.Item
	transport  *transport.TCPTransport
	runner     *connection.Runner
	supervisor *connection.Supervisor
}

// Account returns the account identity.
func (s *Session) Account() account.ID { return s.item.Account() }

// Item returns the connection context.
func (s *Session) Item() *connection.Item { return s.item }

// Runner returns the attempt runner.
func (s *Session) Runner() *connection.Runner { return s.runner }

func (svc *Service) newSession(ctx context.Context, id account.ID, acct config.AccountConfig, cfg *config.Config) *Session {
	logger := svc.logger.With("account", id)
	sess := &Session{item: connection.NewItem(id)}

	sess.transport = transport.NewTCPTransport(transport.TCPConfig{
		Domain:          id.Domain(),
		Host:            acct.Host,
		Port:            acct.Port,
		Authenticator:   transport.FrameAuthenticator(svc.credentials(id, acct.PasswordEnv), acct.Resource),
		OnAuthenticated: sess.item.MarkConnected,
		OnDisconnected: func(err error) {
			logger.Info("disconnected, reconnecting", "error", err)
			sess.item.MarkDisconnected()
			sess.supervisor.Trigger()
		},
	})

	sess.runner = connection.NewRunner(connection.RunnerConfig{
		Transport:   sess.transport,
		Owner:       sess.item,
		Network:     svc.network,
		Accounts:    svc.manager,
		Notifier:    svc.bus,
		Settings:    svc.live,
		Logger:      svc.logger,
		EventLog:    svc.eventLog,
		Metrics:     svc.metrics,
		BaseContext: ctx,
	})

	sess.supervisor = connection.NewSupervisor(connection.SupervisorConfig{
		Runner:   sess.runner,
		Accounts: svc.manager,
		Backoff:  cfg.Backoff(),
		Clock:    svc.clock,
		Logger:   svc.logger,
	})
	sess.supervisor.OnRetry(func(attempt int, delay time.Duration) {
		logger.Info("attempt failed, retrying", "retry", attempt, "delay", delay)
	})
	return sess
}

// credentials reads the password from the environment on every login.
func (svc *Service) credentials(id account.ID, env string) transport.Credentials {
	return func(context.Context) (string, string, error) {
		if env == "" {
			return "", "", fmt.Errorf("%w: no password_env for %s", ErrNoPassword, id)
		}
		password, ok := svc.lookupEnv(env)
		if !ok {
			return "", "", fmt.Errorf("%w: %s is not set", ErrNoPassword, env)
		}
		return id.Local(), password, nil
	}
}

func (s *Session) status(manager *account.Manager) Status {
	last := s.runner.LastOutcome()
	return Status{
		Account:       s.Account(),
		State:         s.item.State(),
		Phase:         s.runner.Phase(),
		Enabled:       manager.Enabled(s.Account()),
		EverConnected: s.item.SuccessfulConnectionHappened(),
		LastResult:    last.Result,
		LastAttempt:   last.Duration,
		Retries:       s.supervisor.BackoffAttempts(),
	}
}

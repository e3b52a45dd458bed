// Package portal talks to the academic portal: form login with a retry
// budget, then JSON-RPC calls carrying the session token.
package portal

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"portalsync/internal/config"
)

// ErrInvalidCredentials marks a login rejected by the portal itself rather
// than by a transport failure.
var ErrInvalidCredentials = errors.New("invalid portal credentials")

// errNoSessionToken means the portal answered 200 but the session cookie was
// not in the jar, so the login cannot be trusted.
var errNoSessionToken = errors.New("session token cookie not found")

// Session owns one authenticated connection to the portal. Each sync run
// creates a fresh one and closes it when the run ends.
type Session struct {
	cfg    config.PortalConfig
	client *resty.Client
	log    zerolog.Logger

	token         string
	authenticated bool
	badCreds      bool
}

// NewSession builds an unauthenticated session with its own cookie jar.
func NewSession(cfg config.PortalConfig, log zerolog.Logger) *Session {
	jar, _ := cookiejar.New(nil)

	client := resty.New().
		SetCookieJar(jar).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTimeout(cfg.RequestTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	return &Session{
		cfg:    cfg,
		client: client,
		log:    log.With().Str("component", "portal.session").Logger(),
	}
}

// loginBackOff waits the constant transport-error delay between attempts,
// except when the portal actually answered and the attempt failed on the
// response content. Those attempts retry immediately.
type loginBackOff struct {
	transport backoff.BackOff
	immediate bool
}

func (b *loginBackOff) NextBackOff() time.Duration {
	if b.immediate {
		b.immediate = false
		return 0
	}
	return b.transport.NextBackOff()
}

func (b *loginBackOff) Reset() { b.transport.Reset() }

// Login attempts the credential form POST up to cfg.MaxLoginRetries times and
// reports success as a boolean. Rejected credentials and a missing session
// cookie burn an attempt without waiting; transport errors wait the configured
// delay before the next attempt. The last attempt never sleeps.
func (s *Session) Login(ctx context.Context, username, password string) bool {
	retries := s.cfg.MaxLoginRetries
	if retries < 1 {
		retries = 1
	}
	wait := &loginBackOff{transport: backoff.NewConstantBackOff(s.cfg.LoginRetryDelay)}
	policy := backoff.WithContext(backoff.WithMaxRetries(wait, uint64(retries-1)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		s.log.Info().Int("attempt", attempt).Int("max", retries).Msg("portal login attempt")

		err := s.attemptLogin(ctx, username, password)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrInvalidCredentials):
			s.badCreds = true
			wait.immediate = true
			s.log.Warn().Int("attempt", attempt).Msg("portal rejected credentials")
		case errors.Is(err, errNoSessionToken):
			wait.immediate = true
			s.log.Warn().Int("attempt", attempt).Msg("login response carried no session token")
		default:
			s.log.Error().Err(err).Int("attempt", attempt).Msg("portal login attempt failed")
		}
		return err
	}, policy)
	if err != nil {
		s.log.Error().Int("attempts", attempt).Msg("all portal login attempts failed")
		return false
	}

	s.log.Info().Str("token_prefix", prefix(s.token, 6)).Msg("portal login succeeded")
	return true
}

func (s *Session) attemptLogin(ctx context.Context, username, password string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": username,
			"password": password,
		}).
		Post(s.cfg.LoginURL)
	if err != nil {
		return err
	}

	body := resp.String()
	for _, marker := range s.cfg.InvalidLoginMarkers {
		if strings.Contains(body, marker) {
			return ErrInvalidCredentials
		}
	}

	if resp.StatusCode() != http.StatusOK {
		return errors.New("login response status " + resp.Status())
	}

	token := s.sessionCookie(resp)
	if token == "" {
		return errNoSessionToken
	}

	s.token = token
	s.authenticated = true
	return nil
}

// sessionCookie looks for the session token in the response cookies first,
// then in the jar, since the portal may set it on an intermediate redirect.
func (s *Session) sessionCookie(resp *resty.Response) string {
	for _, c := range resp.Cookies() {
		if c.Name == s.cfg.SessionCookie && c.Value != "" {
			return c.Value
		}
	}
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		for _, c := range s.client.GetClient().Jar.Cookies(resp.RawResponse.Request.URL) {
			if c.Name == s.cfg.SessionCookie && c.Value != "" {
				return c.Value
			}
		}
	}
	return ""
}

// Authenticated reports whether a login has succeeded on this session.
func (s *Session) Authenticated() bool { return s.authenticated }

// Token returns the cached session token, empty until authenticated.
func (s *Session) Token() string { return s.token }

// CredentialsRejected reports whether any attempt failed on the credential
// markers, so callers can raise an operator signal instead of retrying later.
func (s *Session) CredentialsRejected() bool { return s.badCreds }

// Close drops the session's idle connections. Safe to call on any exit path.
func (s *Session) Close() {
	s.authenticated = false
	s.token = ""
	s.client.GetClient().CloseIdleConnections()
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

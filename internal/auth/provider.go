package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ProviderConfig configures the provider token endpoint.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

// ProviderLink holds the gateway's own credentials for the provider's event
// gateway. It exchanges AcceptGrant codes, refreshes the access token when
// it has expired and tracks whether the last attempt succeeded.
//
// Refresh is check-then-act without a lock around the network call; two
// concurrent refreshes both succeed because the provider honours the same
// refresh token twice.
type ProviderLink struct {
	oauth      *oauth2.Config
	store      LinkRepository
	httpClient *http.Client
	now        func() time.Time
	logger     Logger

	mu             sync.RWMutex
	connected      bool
	onConnectivity func(connected bool)
}

// NewProviderLink creates a provider link backed by store.
func NewProviderLink(cfg ProviderConfig, store LinkRepository) *ProviderLink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ProviderLink{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the provider link.
func (p *ProviderLink) SetLogger(logger Logger) {
	p.logger = logger
}

// SetClock replaces the time source used for expiry checks.
func (p *ProviderLink) SetClock(now func() time.Time) {
	p.now = now
}

// OnConnectivityChange registers fn, called whenever the connectivity flag
// flips.
func (p *ProviderLink) OnConnectivityChange(fn func(connected bool)) {
	p.mu.Lock()
	p.onConnectivity = fn
	p.mu.Unlock()
}

// Connected reports whether the last token operation succeeded.
func (p *ProviderLink) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *ProviderLink) setConnected(v bool) {
	p.mu.Lock()
	changed := p.connected != v
	p.connected = v
	fn := p.onConnectivity
	p.mu.Unlock()

	if changed && fn != nil {
		fn(v)
	}
}

func (p *ProviderLink) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// AcceptGrant exchanges the authorization code from an AcceptGrant
// directive for a provider token pair and stores it.
func (p *ProviderLink) AcceptGrant(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("%w: empty grant code", ErrProviderUnavailable)
	}

	tok, err := p.oauth.Exchange(p.clientContext(ctx), code)
	if err != nil {
		p.setConnected(false)
		return fmt.Errorf("%w: exchanging grant: %w", ErrProviderUnavailable, err)
	}
	if err := p.save(ctx, tok); err != nil {
		p.setConnected(false)
		return err
	}

	p.setConnected(true)
	p.logger.Info("provider account linked", "expires_at", tok.Expiry)
	return nil
}

// AccessToken returns a valid provider access token, refreshing it first if
// the stored one has expired.
//
// Returns ErrMissingAccountLinking when no refresh token is on record. Any
// failure clears the connectivity flag; success sets it.
func (p *ProviderLink) AccessToken(ctx context.Context) (string, error) {
	link, err := p.store.Get(ctx)
	if err != nil {
		p.setConnected(false)
		if errors.Is(err, ErrLinkNotFound) {
			return "", ErrMissingAccountLinking
		}
		return "", err
	}
	if link.RefreshToken == "" {
		p.setConnected(false)
		return "", ErrMissingAccountLinking
	}

	if link.AccessToken != "" && p.now().Before(link.ExpiresAt) {
		p.setConnected(true)
		return link.AccessToken, nil
	}

	src := p.oauth.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: link.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		p.setConnected(false)
		return "", fmt.Errorf("%w: refreshing: %w", ErrProviderUnavailable, err)
	}
	if err := p.save(ctx, tok); err != nil {
		p.setConnected(false)
		return "", err
	}

	p.setConnected(true)
	p.logger.Info("provider token refreshed", "expires_at", tok.Expiry)
	return tok.AccessToken, nil
}

func (p *ProviderLink) save(ctx context.Context, tok *oauth2.Token) error {
	expires := tok.Expiry
	if expires.IsZero() {
		expires = p.now().Add(time.Hour)
	}
	return p.store.Save(ctx, &Link{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expires,
		UpdatedAt:    p.now(),
	})
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avelinebess/likify/internal/server"
	"github.com/avelinebess/likify/internal/services"
	"github.com/avelinebess/likify/internal/shared"
	"github.com/avelinebess/likify/internal/ui"
	"github.com/urfave/cli/v3"
)

// SpotifyAuth performs the OAuth2 authorization flow for Spotify.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// exchanges the auth code for a token bundle saved to the config file.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config := r.loadConfig(configPath)

	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set", shared.ErrMissingCredentials)
	}

	spotify := r.spotify
	if spotify == nil {
		svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
		if err != nil {
			return fmt.Errorf("failed to create Spotify service: %w", err)
		}
		spotify = svc
	}

	token, err := r.doOAuth(config, spotify)
	if err != nil {
		return err
	}

	storeToken(config, token)

	if err := shared.SaveConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.config = config

	r.writePlainln("%s Authorization successful", ui.OK("✓"))
	r.writePlain("%s Tokens saved to %s\n\n", ui.OK("✓"), configPath)
	r.writePlain("You can now use: likify transfer run\n")

	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(config *shared.Config, spotify services.Service) (*services.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, err
	}

	authURL := spotify.AuthURL(state)
	oauthHandler := server.NewOAuthHandler(spotify, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("%s Could not open browser automatically.", ui.Warn("⚠"))
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}

// AuthStatus reports whether usable credentials and tokens are configured.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))
	sp := config.Credentials.Spotify

	if sp.ClientID == "" || sp.ClientSecret == "" {
		r.writePlain("%s Client credentials not configured\n", ui.Err("✗"))
		return nil
	}
	r.writePlain("%s Client credentials configured\n", ui.OK("✓"))

	tok := sessionToken(config)
	switch {
	case tok == nil:
		r.writePlain("%s Not authorized yet — run: likify auth\n", ui.Warn("⚠"))
	case tok.Fresh(time.Now()):
		r.writePlain("%s Access token is fresh\n", ui.OK("✓"))
	case tok.RefreshToken != "":
		r.writePlain("%s Access token is stale; it will refresh on next use\n", ui.Warn("⚠"))
	default:
		r.writePlain("%s Access token expired and no refresh token held — run: likify auth\n", ui.Err("✗"))
	}

	return nil
}

package google

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/metamate-app/metamate/internal/config"
)

// NewCalendarClient authenticates against Google and returns a Calendar
// client. The token is read from the configured file; when absent, the
// interactive OAuth flow runs once and persists it.
func NewCalendarClient(ctx context.Context, cfg *config.Google, loc *time.Location) (*CalendarClient, error) {
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint:     google.Endpoint,
	}

	token, err := getToken(ctx, oauth2Config, cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	httpClient := oauth2Config.Client(ctx, token)

	calendarService, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &CalendarClient{Service: calendarService, Location: loc}, nil
}

// Authorize runs the OAuth flow up front so the server can start without a
// browser prompt later.
func Authorize(ctx context.Context, cfg *config.Google) error {
	_, err := NewCalendarClient(ctx, cfg, time.UTC)
	return err
}

// getToken retrieves a token from a local file or runs OAuth flow
func getToken(ctx context.Context, config *oauth2.Config, tokenFile string) (*oauth2.Token, error) {
	// Expand home directory
	if len(tokenFile) > 1 && tokenFile[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		tokenFile = filepath.Join(home, tokenFile[2:])
	}

	token, err := tokenFromFile(tokenFile)
	if err == nil {
		// Refresh if expired and persist the new token
		tokenSource := config.TokenSource(ctx, token)
		newToken, err := tokenSource.Token()
		if err == nil && newToken.AccessToken != token.AccessToken {
			saveToken(tokenFile, newToken)
			return newToken, nil
		}
		return token, nil
	}

	log.Printf("Starting OAuth flow...")
	token, err = getTokenFromWeb(config)
	if err != nil {
		return nil, fmt.Errorf("failed to get token from web: %w", err)
	}

	if err := saveToken(tokenFile, token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	return token, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}

// saveToken saves a token to a file path
func saveToken(path string, token *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}

// getTokenFromWeb runs the OAuth flow via web browser
func getTokenFromWeb(config *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string)

	server := &http.Server{Addr: ":8080"}

	callbackHandler := func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			fmt.Fprintf(w, "Error: No authorization code received")
			return
		}

		codeCh <- code
		fmt.Fprintf(w, `
			<html>
			<head><title>MetaMate - Authorization Successful</title></head>
			<body>
				<h1>Authorization Successful!</h1>
				<p>You can close this window and return to the terminal.</p>
				<script>window.close();</script>
			</body>
			</html>
		`)
	}

	// Handle both /callback and root path for Desktop OAuth clients
	http.HandleFunc("/callback", callbackHandler)
	http.HandleFunc("/", callbackHandler)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser:\n%v\n\n", authURL)

	code := <-codeCh

	token, err := config.Exchange(context.Background(), code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}

	return token, nil
}

// ABOUTME: OAuth configuration for the Google Calendar connection
// ABOUTME: Builds the oauth2 config from application settings and generates state nonces
package sync

import (
	"github.com/harperreed/studypilot/config"
	"github.com/oklog/ulid/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// NewOAuthConfig creates OAuth2 config for Google Calendar.
func NewOAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			calendar.CalendarEventsScope,
			calendar.CalendarReadonlyScope,
		},
		Endpoint: google.Endpoint,
	}
}

// AuthURL returns the consent URL for state. Offline access with forced consent
// makes Google issue a refresh token on every connect.
func AuthURL(oauthConfig *oauth2.Config, state string) string {
	return oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// NewState returns a fresh OAuth state nonce.
func NewState() string {
	return ulid.Make().String()
}

package oauth

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/formloft/formloft/internal/pkg/cache"
	"github.com/formloft/formloft/internal/pkg/env"
)

// Drive scope plus profile/email so the callback can key the credential by
// the operator's address. AccessTypeOffline is required to receive a refresh
// token on first consent.
const driveScope = "https://www.googleapis.com/auth/drive.file"

// Setup initializes the Google provider and session store based on
// environment variables. It is safe to call multiple times; the provider
// will just be re-registered.
func Setup() {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}

	provider := google.New(
		env.GetEnv("GOOGLE_KEY", ""),
		env.GetEnv("GOOGLE_SECRET", ""),
		base+"/auth/google/callback",
		"email", "profile", driveScope,
	)
	provider.SetAccessType("offline")
	provider.SetPrompt("consent")

	goth.UseProviders(provider)

	// OAuth state via Redis, using same connection as the app cache
	// (separate DB)
	cacheClient := cache.GetClient()
	cacheOpts := cacheClient.Options()
	host, port := "127.0.0.1", 6379
	if cacheOpts != nil && cacheOpts.Addr != "" {
		if h, p, err := net.SplitHostPort(cacheOpts.Addr); err == nil {
			host = h
			if parsed, e := strconv.Atoi(p); e == nil {
				port = parsed
			}
		} else {
			host = cacheOpts.Addr
		}
	}

	gothfiber.SessionStore = session.New(session.Config{
		Storage: redisstorage.New(redisstorage.Config{
			Host:     host,
			Port:     port,
			Username: cacheOpts.Username,
			Password: cacheOpts.Password,
			Database: 2,
			Reset:    false,
		}),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     72 * time.Hour,
	})
}

// GoogleProvider returns the registered Google provider. The credential
// store uses it to run the refresh-token grant.
func GoogleProvider() (*google.Provider, error) {
	provider, err := goth.GetProvider("google")
	if err != nil {
		return nil, err
	}
	return provider.(*google.Provider), nil
}

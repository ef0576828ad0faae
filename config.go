package auth

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

const (
	// DefaultUserTokenTTL is the lifetime of tokens issued to regular users
	DefaultUserTokenTTL = 30 * 24 * time.Hour
	// DefaultAdminTokenTTL is the lifetime of tokens issued to the admin principal
	DefaultAdminTokenTTL = 24 * time.Hour
)

// Settings holds process wide configuration. It is loaded once at startup and
// must be treated as read-only afterwards.
type Settings struct {
	SigningKey    string
	Issuer        string
	UserTokenTTL  time.Duration
	AdminTokenTTL time.Duration

	AdminEmail    string
	AdminPassword string

	HTTPAddr    string
	StoreDriver string
	DatabaseDSN string
	MongoURI    string
	MongoDB     string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	Debug bool
}

func (s Settings) GetSigningKey() string {
	return s.SigningKey
}

func (s Settings) GetIssuer() string {
	return s.Issuer
}

func (s Settings) GetUserTokenTTL() time.Duration {
	if s.UserTokenTTL <= 0 {
		return DefaultUserTokenTTL
	}
	return s.UserTokenTTL
}

func (s Settings) GetAdminTokenTTL() time.Duration {
	if s.AdminTokenTTL <= 0 {
		return DefaultAdminTokenTTL
	}
	return s.AdminTokenTTL
}

// HasAdminCredentials reports whether both admin secrets are configured
func (s Settings) HasAdminCredentials() bool {
	return s.AdminEmail != "" && s.AdminPassword != ""
}

// Validate checks the settings required to boot the service. Admin
// credentials are optional here, their absence is reported per request.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.SigningKey) == "" {
		return ErrSigningKeyNotConfigured
	}
	return nil
}

// LoadSettings reads an optional dotenv file and then the process environment.
// Missing dotenv files are ignored.
func LoadSettings(files ...string) (Settings, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return Settings{}, errors.Wrap(err, errors.CategoryInternal, "failed to load env file "+file)
		}
	}

	s := Settings{
		SigningKey:          os.Getenv("JWT_SECRET"),
		Issuer:              getenv("JWT_ISSUER", "go-auth-accounts"),
		UserTokenTTL:        durationEnv("USER_TOKEN_TTL", DefaultUserTokenTTL),
		AdminTokenTTL:       durationEnv("ADMIN_TOKEN_TTL", DefaultAdminTokenTTL),
		AdminEmail:          strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:       os.Getenv("ADMIN_PASSWORD"),
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		StoreDriver:         getenv("STORE_DRIVER", "sql"),
		DatabaseDSN:         getenv("DATABASE_DSN", "file:accounts.db?cache=shared"),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDB:             getenv("MONGO_DATABASE", "accounts"),
		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryFolder:    getenv("CLOUDINARY_FOLDER", "profile_pictures"),
	}

	if debug, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil {
		s.Debug = debug
	}

	return s, s.Validate()
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

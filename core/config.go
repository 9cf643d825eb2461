package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	serverConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		CookieName                string
		CookieSecure              bool
		DisableCSRF               bool
	}

	databaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	storageConfig struct {
		Bucket          string
		AccountFile     string
		AccountJSON     string
		PathPrefix      string
		SignedURLExpiry time.Duration
	}

	mailchimpConfig struct {
		APIKey       string
		ServerPrefix string
		ListID       string
	}

	sheetsConfig struct {
		AccountJSON   string
		SpreadsheetID string
	}

	Config struct {
		Debug                     bool
		TestMode                  bool
		Env                       string
		Build                     string
		AppName                   string
		SecretKey                 string
		WorkDir                   string
		FrontendBaseURL           string
		TimeZone                  string
		Location                  *time.Location
		PasswordResetTimeoutDelta time.Duration
		InvitationExpiry          time.Duration
		RehearsalEventType        string
		SendgridApiKey            string
		RollbarToken              string
		Admins                    []mail.Address
		Server                    serverConfig
		Database                  databaseConfig
		Storage                   storageConfig
		Mailchimp                 mailchimpConfig
		Sheets                    sheetsConfig

		defaultFromEmail string
		defaultFromName  string
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.defaultFromName, Address: c.defaultFromEmail}
}

// SubjectPrefix is prepended to every outgoing email subject.
func (c *Config) SubjectPrefix() string {
	return "[" + c.AppName + "] "
}

func (dc databaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "develop")
	conf.SetDefault("appName", "London Humanist Choir")
	conf.SetDefault("secretKey", "q8%w!mx2t$0r7=bk^c1+vj4@zl#p9(e)hn6&yd3_uafs5o")
	conf.SetDefault("frontendBaseURL", "http://localhost:8000")
	conf.SetDefault("timeZone", "UTC")
	conf.SetDefault("defaultFromEmail", "chair@london.humanistchoir.org")
	conf.SetDefault("defaultFromName", "LHC Members")
	conf.SetDefault("admins", "Chair <chair@london.humanistchoir.org>")
	conf.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	conf.SetDefault("invitationExpiry", 7*24*time.Hour)
	conf.SetDefault("rehearsalEventType", "Rehearsal")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 14*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)
	conf.SetDefault("server.cookieName", "lhc_session")
	conf.SetDefault("server.disableCSRF", false)

	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "lhc_members")
	conf.SetDefault("database.user", "")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", false)
	conf.SetDefault("database.path", "lhc_members.sqlite3")

	conf.SetDefault("gs.bucket", "london-humanist-choir")
	conf.SetDefault("gs.accountFile", "")
	conf.SetDefault("gs.accountJSON", "")
	conf.SetDefault("gs.pathPrefix", "media/")
	conf.SetDefault("gs.signedURLExpiry", 24*time.Hour)

	conf.SetDefault("mailchimp.apiKey", "")
	conf.SetDefault("mailchimp.serverPrefix", "")
	conf.SetDefault("mailchimp.listID", "")

	conf.SetDefault("sheets.accountJSON", "")
	conf.SetDefault("sheets.spreadsheetID", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	debug := conf.GetBool("debug")
	engine := conf.GetString("database.engine")
	if engine == "" {
		engine = "postgres"
		if debug {
			engine = "sqlite"
		}
	}

	tz := conf.GetString("timeZone")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Fatalf("config.LoadLocation(%s): %v", tz, err)
	}

	admins, err := mail.ParseAddressList(conf.GetString("admins"))
	if err != nil {
		log.Fatalf("config.admins: %v", err)
	}

	return &Config{
		Debug:                     debug,
		TestMode:                  conf.GetBool("testMode"),
		Env:                       env,
		Build:                     conf.GetString("build"),
		AppName:                   conf.GetString("appName"),
		SecretKey:                 conf.GetString("secretKey"),
		WorkDir:                   wd,
		FrontendBaseURL:           strings.TrimSuffix(conf.GetString("frontendBaseURL"), "/"),
		TimeZone:                  tz,
		Location:                  loc,
		PasswordResetTimeoutDelta: conf.GetDuration("passwordResetTimeoutDelta"),
		InvitationExpiry:          conf.GetDuration("invitationExpiry"),
		RehearsalEventType:        conf.GetString("rehearsalEventType"),
		SendgridApiKey:            conf.GetString("sendgridApiKey"),
		RollbarToken:              conf.GetString("rollbarToken"),
		Admins:                    derefAddresses(admins),
		Server: serverConfig{
			Host:                      conf.GetString("server.host"),
			DebugHost:                 conf.GetString("server.debugHost"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
			CookieName:                conf.GetString("server.cookieName"),
			CookieSecure:              !debug,
			DisableCSRF:               conf.GetBool("server.disableCSRF"),
		},
		Database: databaseConfig{
			Engine:        engine,
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
			Path:          conf.GetString("database.path"),
		},
		Storage: storageConfig{
			Bucket:          conf.GetString("gs.bucket"),
			AccountFile:     conf.GetString("gs.accountFile"),
			AccountJSON:     conf.GetString("gs.accountJSON"),
			PathPrefix:      conf.GetString("gs.pathPrefix"),
			SignedURLExpiry: conf.GetDuration("gs.signedURLExpiry"),
		},
		Mailchimp: mailchimpConfig{
			APIKey:       conf.GetString("mailchimp.apiKey"),
			ServerPrefix: conf.GetString("mailchimp.serverPrefix"),
			ListID:       conf.GetString("mailchimp.listID"),
		},
		Sheets: sheetsConfig{
			AccountJSON:   conf.GetString("sheets.accountJSON"),
			SpreadsheetID: conf.GetString("sheets.spreadsheetID"),
		},
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		defaultFromName:  conf.GetString("defaultFromName"),
	}
}

// NewTestConfig returns a Config suitable for tests: no external services, UTC, CSRF off.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Debug = true
	conf.TestMode = true
	conf.SecretKey = "test-secret"
	conf.FrontendBaseURL = "http://testserver"
	conf.TimeZone = "UTC"
	conf.Location = time.UTC
	conf.Server.DisableCSRF = true
	conf.Server.CookieSecure = false
	conf.Database.Engine = "sqlite"
	return conf
}

func derefAddresses(addrs []*mail.Address) []mail.Address {
	out := make([]mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, *a)
	}
	return out
}

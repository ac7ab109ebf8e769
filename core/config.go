package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName  string
		Env      string // DEV (local; default), TEST, QA, PROD
		Debug    bool
		TestMode bool
		Build    string
		WorkDir  string

		Server   ServerConfig
		Database DatabaseConfig
		Auth     AuthConfig
		Email    EmailConfig
		Invoice  InvoiceConfig
		Log      LogConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// AuthConfig describes the tokens issued by the hosted auth provider.
	AuthConfig struct {
		JWTSecret   string
		Audience    string
		Issuer      string
		TokenExpiry time.Duration // only used for tokens minted by the admin CLI
	}

	EmailConfig struct {
		DefaultFromName    string
		DefaultFromAddress string
		SendgridAPIKey     string
		FrontendBaseURL    string
	}

	InvoiceConfig struct {
		Currency        string
		TaxRateBP       int // basis points: 500 = 5%
		PaymentTermDays int
		NumberPrefix    string
	}

	LogConfig struct {
		RollbarToken string
		File         string
		MaxSizeMB    int
		MaxBackups   int
		MaxAgeDays   int
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c EmailConfig) DefaultFrom() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromAddress}
}

// NewConfig loads the configuration from the environment.
// config/.env.<env> is loaded first when it exists; real env vars take precedence.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetDefault("testMode", env == "TEST")

	setDefaults(v)

	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		AppName:  v.GetString("appName"),
		Env:      env,
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		Build:    v.GetString("build"),
		WorkDir:  workDir,
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Auth: AuthConfig{
			JWTSecret:   v.GetString("auth.jwtSecret"),
			Audience:    v.GetString("auth.audience"),
			Issuer:      v.GetString("auth.issuer"),
			TokenExpiry: v.GetDuration("auth.tokenExpiry"),
		},
		Email: EmailConfig{
			DefaultFromName:    v.GetString("email.defaultFromName"),
			DefaultFromAddress: v.GetString("email.defaultFromAddress"),
			SendgridAPIKey:     v.GetString("email.sendgridApiKey"),
			FrontendBaseURL:    v.GetString("email.frontendBaseUrl"),
		},
		Invoice: InvoiceConfig{
			Currency:        strings.ToUpper(v.GetString("invoice.currency")),
			TaxRateBP:       v.GetInt("invoice.taxRateBP"),
			PaymentTermDays: v.GetInt("invoice.paymentTermDays"),
			NumberPrefix:    v.GetString("invoice.numberPrefix"),
		},
		Log: LogConfig{
			RollbarToken: v.GetString("log.rollbarToken"),
			File:         v.GetString("log.file"),
			MaxSizeMB:    v.GetInt("log.maxSizeMB"),
			MaxBackups:   v.GetInt("log.maxBackups"),
			MaxAgeDays:   v.GetInt("log.maxAgeDays"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Business Services Hub")
	v.SetDefault("build", "develop")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "serviceshub")
	v.SetDefault("database.user", "serviceshub")
	v.SetDefault("database.password", "serviceshub")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("auth.jwtSecret", "super-secret-jwt-token-with-at-least-32-characters-long")
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.tokenExpiry", time.Hour)

	v.SetDefault("email.defaultFromName", "Business Services Hub")
	v.SetDefault("email.defaultFromAddress", "noreply@localhost")
	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.frontendBaseUrl", "http://localhost:3000")

	v.SetDefault("invoice.currency", "OMR")
	v.SetDefault("invoice.taxRateBP", 500)
	v.SetDefault("invoice.paymentTermDays", 30)
	v.SetDefault("invoice.numberPrefix", "INV")

	v.SetDefault("log.rollbarToken", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSizeMB", 50)
	v.SetDefault("log.maxBackups", 5)
	v.SetDefault("log.maxAgeDays", 28)
}

// NewTestConfig returns the configuration used by tests; it never reads the environment.
func NewTestConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)
	return &Config{
		AppName:  v.GetString("appName"),
		Env:      "TEST",
		TestMode: true,
		Build:    "test",
		Server:   ServerConfig{DisableReqLogs: true, ShutdownTimeout: time.Second},
		Auth: AuthConfig{
			JWTSecret:   "test-secret",
			Audience:    v.GetString("auth.audience"),
			TokenExpiry: time.Hour,
		},
		Email: EmailConfig{
			DefaultFromName:    v.GetString("email.defaultFromName"),
			DefaultFromAddress: "noreply@test.local",
			FrontendBaseURL:    v.GetString("email.frontendBaseUrl"),
		},
		Invoice: InvoiceConfig{
			Currency:        v.GetString("invoice.currency"),
			TaxRateBP:       v.GetInt("invoice.taxRateBP"),
			PaymentTermDays: v.GetInt("invoice.paymentTermDays"),
			NumberPrefix:    v.GetString("invoice.numberPrefix"),
		},
	}
}

// Getwd tries to find the project root (the directory holding go.mod).
// go test changes the working directory to the package being tested,
// so we walk up until we find it, falling back to the working directory.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

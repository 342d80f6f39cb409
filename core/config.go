package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		SecretKey    string
		RollbarToken string
		WorkDir      string

		Server    ServerConfig
		Database  DatabaseConfig
		School    SchoolConfig
		Ledger    LedgerConfig
		Promotion PromotionConfig
		Import    ImportConfig
		Mail      MailConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
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

	SchoolConfig struct {
		Name            string
		AcademicYear    int // Bikram Sambat year; 0 derives it from the current date
		Sections        string
		EmailDomain     string
		FeeSchedulePath string
	}

	LedgerConfig struct {
		LockTimeout time.Duration
	}

	PromotionConfig struct {
		SecretHash string // bcrypt hash of the promotion secret
		ArchiveDir string
	}

	ImportConfig struct {
		MaxUploadSize int64 // bytes
	}

	MailConfig struct {
		DefaultFromName    string
		DefaultFromAddress string
		AdminEmail         string
		SendgridApiKey     string
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

func (mc MailConfig) DefaultFrom() mail.Address {
	return mail.Address{Name: mc.DefaultFromName, Address: mc.DefaultFromAddress}
}

// CurrentAcademicYear returns the configured academic year, or the Bikram Sambat year of `now`.
// The BS new year falls mid-April; the offset from the Gregorian year is 57 before it and 56 after.
func (sc SchoolConfig) CurrentAcademicYear(now time.Time) int {
	if sc.AcademicYear > 0 {
		return sc.AcademicYear
	}
	if now.Month() > time.April || (now.Month() == time.April && now.Day() >= 14) {
		return now.Year() + 57
	}
	return now.Year() + 56
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Vidyalaya")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", "localhost:4000")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("shutdownTimeout", 5*time.Second)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "vidyalaya")
	v.SetDefault("dbUser", "vidyalaya")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("schoolName", "Vidyalaya")
	v.SetDefault("academicYear", 0)
	v.SetDefault("sections", "ABCDEF")
	v.SetDefault("emailDomain", "students.vidyalaya.local")
	v.SetDefault("feeSchedulePath", "")

	v.SetDefault("ledgerLockTimeout", 5*time.Second)

	v.SetDefault("promotionSecretHash", "")
	v.SetDefault("archiveDir", "graduated")

	v.SetDefault("maxUploadSize", 5<<20)

	v.SetDefault("defaultFromName", "Vidyalaya")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("adminEmail", "")
	v.SetDefault("sendgridApiKey", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		WorkDir:      workDir,
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Address:                   v.GetString("serverAddress"),
			DebugHost:                 v.GetString("serverDebugHost"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		School: SchoolConfig{
			Name:            v.GetString("schoolName"),
			AcademicYear:    v.GetInt("academicYear"),
			Sections:        strings.ToUpper(v.GetString("sections")),
			EmailDomain:     v.GetString("emailDomain"),
			FeeSchedulePath: v.GetString("feeSchedulePath"),
		},
		Ledger: LedgerConfig{
			LockTimeout: v.GetDuration("ledgerLockTimeout"),
		},
		Promotion: PromotionConfig{
			SecretHash: v.GetString("promotionSecretHash"),
			ArchiveDir: absPath(workDir, v.GetString("archiveDir")),
		},
		Import: ImportConfig{
			MaxUploadSize: v.GetInt64("maxUploadSize"),
		},
		Mail: MailConfig{
			DefaultFromName:    v.GetString("defaultFromName"),
			DefaultFromAddress: v.GetString("defaultFromEmail"),
			AdminEmail:         v.GetString("adminEmail"),
			SendgridApiKey:     v.GetString("sendgridApiKey"),
		},
	}
}

// NewTestConfig returns a Config suitable for unit tests: no env, no dotenv, no filesystem lookups.
func NewTestConfig() *Config {
	return &Config{
		Env:       "TEST",
		Build:     "test",
		Debug:     false,
		TestMode:  true,
		AppName:   "Vidyalaya",
		SecretKey: "test-secret-key",
		Server: ServerConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
			ShutdownTimeout:           time.Second,
		},
		School: SchoolConfig{
			Name:         "Vidyalaya",
			AcademicYear: 2081,
			Sections:     "ABCDEF",
			EmailDomain:  "students.test",
		},
		Ledger:    LedgerConfig{LockTimeout: time.Second},
		Promotion: PromotionConfig{ArchiveDir: filepath.Join(os.TempDir(), "vidyalaya-test-archives")},
		Import:    ImportConfig{MaxUploadSize: 5 << 20},
		Mail:      MailConfig{DefaultFromName: "Vidyalaya", DefaultFromAddress: "noreply@test"},
	}
}

func absPath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func (c *Config) String() string {
	return fmt.Sprintf("%s(env=%s build=%s debug=%t)", c.AppName, c.Env, c.Build, c.Debug)
}

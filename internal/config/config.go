package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "BENCHTRACK_"

type Application struct {
	Host     string   `koanf:"host"`
	Listen   string   `koanf:"listen"`
	Database Database `koanf:"db"`
	Cors     Cors     `koanf:"cors"`
	Ledger   Ledger   `koanf:"ledger"`
	Session  Session  `koanf:"session"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Cors struct {
	AllowedOrigins []string `koanf:"allowedorigins"`
}

type Ledger struct {
	// EditWindowDays is how many days back non-admin users may change existing allocations.
	EditWindowDays int `koanf:"editwindowdays"`
	// WeeklyLimit is the number of hours above which a user counts as overallocated.
	WeeklyLimit int `koanf:"weeklylimit"`
}

type Session struct {
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweepinterval"`
	// IdentityHeader names the header an authenticating proxy sets to the user's login.
	// Requests carrying it without a session get one issued. Empty disables it.
	IdentityHeader string `koanf:"identityheader"`
}

func Defaults() Application {
	return Application{
		Host:   "http://localhost:8181",
		Listen: ":8181",
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "benchtrack",
			Pass:   "",
			Name:   "benchtrack",
			Schema: "benchtrack",
		},
		Cors: Cors{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Ledger: Ledger{
			EditWindowDays: 15,
			WeeklyLimit:    40,
		},
		Session: Session{
			TTL:            12 * time.Hour,
			SweepInterval:  10 * time.Minute,
			IdentityHeader: "X-Forwarded-User",
		},
	}
}

// Load reads defaults, then the YAML file at path (optional), then BENCHTRACK_* environment
// variables, e.g. BENCHTRACK_DB_HOST or BENCHTRACK_LEDGER_WEEKLYLIMIT.
func Load(path string) (Application, error) {
	var k = koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			if k == "cors.allowedorigins" {
				return k, strings.Split(v, ",")
			}
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}
	return app, nil
}

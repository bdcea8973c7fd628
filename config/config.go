// Package config provides the glue between viper and the rest of the application.
// All values are read once at boot; the tracker and proxy receive an immutable
// options value built from these keys and never read config at call sites.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/gin-gonic/gin"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/tdjsnelling/sqtracker-sub000/consts"
)

const (
	// GeneralRunMode defines the application run mode.
	// debug|release
	GeneralRunMode = "general_run_mode"

	// GeneralLogLevel sets the logrus Logger level
	// info|warn|debug|trace
	GeneralLogLevel = "general_log_level"

	// GeneralLogColour toggles between colourised console output
	// true|false
	GeneralLogColour = "general_log_colour"

	// TrackerListen sets the host and port the gateway binds to
	// hostname:port
	TrackerListen = "tracker_listen"
	// TrackerAPIListen sets the host and port the internal admin API binds
	// to. This surface must never be exposed publicly.
	// hostname:port
	TrackerAPIListen = "tracker_api_listen"
	// TrackerUpstreamURL is the base URL of the upstream tracker engine that
	// allowed announces are forwarded to
	// http://localhost:6969
	TrackerUpstreamURL = "tracker_upstream_url"
	// TrackerAnnounceInterval is the interval, in seconds, forced onto the
	// interval/min interval keys of upstream announce responses. Kept low so
	// accounting stays current.
	// 30
	TrackerAnnounceInterval = "tracker_announce_interval"

	// MinimumRatio is the share ratio floor below which leeching is denied.
	// -1 disables the gate.
	// 0.75|-1
	MinimumRatio = "minimum_ratio"
	// MaximumHitNRuns is the hit-and-run ceiling at or above which leeching
	// is denied. -1 disables the gate.
	// 5|-1
	MaximumHitNRuns = "maximum_hit_n_runs"
	// BonusPerGB is the number of bonus points awarded per whole gigabyte
	// boundary of lifetime upload crossed
	// 1
	BonusPerGB = "bonus_per_gb"
	// SiteWideFreeleech, when true, freezes download accounting for every
	// torrent regardless of its own freeleech flag
	// true|false
	SiteWideFreeleech = "site_wide_freeleech"

	// StoreType sets the backing store type
	// memory|mysql|postgres
	StoreType = "store_type"
	// StoreHost is the host to connect to
	// localhost
	StoreHost = "store_host"
	// StorePort is the port to connect to
	// 3306|5432
	StorePort = "store_port"
	// StoreDatabase is the database / schema name to open on the backing store
	// sqtracker
	StoreDatabase = "store_database"
	// StoreUser user to connect with
	StoreUser = "store_user"
	// StorePassword password to connect with
	StorePassword = "store_password"
	// StoreProperties sets additional properties passed to the backing store configuration
	StoreProperties = "store_properties"

	// CacheType sets the user cache implementation
	// memory|redis|none
	CacheType = "cache_type"
	// CacheHost is the redis host when cache_type is redis
	CacheHost = "cache_host"
	// CachePort is the redis port when cache_type is redis
	CachePort = "cache_port"
	// CachePassword is the redis password when cache_type is redis
	CachePassword = "cache_password"
	// CacheDatabase is the numeric redis database to use
	// 0
	CacheDatabase = "cache_database"
	// CacheUserTTL bounds how long a cached user may be served before the
	// store is consulted again. Stale entries risk admitting banned or
	// unverified users, so keep this short.
	// 60s|5m
	CacheUserTTL = "cache_user_ttl"
)

// StoreConfig provides a common config struct for backing stores
type StoreConfig struct {
	Type       string
	Host       string
	Port       int
	Username   string
	Password   string
	Database   string
	Properties string
}

// DSN constructs a URI for database connection strings
//
// protocol//[user]:[password]@tcp([host]:[port])[/database][?properties]
func (c StoreConfig) DSN() string {
	props := c.Properties
	if props != "" {
		props = "?" + props
	}
	s := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, props)
	u, err := url.Parse(s)
	if err != nil {
		log.Fatalf("Failed to construct valid database DSN: %s", err.Error())
		return ""
	}
	return u.String()
}

// GetStoreConfig returns the backing store config options
func GetStoreConfig() StoreConfig {
	return StoreConfig{
		Type:       viper.GetString(StoreType),
		Host:       viper.GetString(StoreHost),
		Port:       viper.GetInt(StorePort),
		Username:   viper.GetString(StoreUser),
		Password:   viper.GetString(StorePassword),
		Database:   viper.GetString(StoreDatabase),
		Properties: viper.GetString(StoreProperties),
	}
}

// Read reads in config file and ENV variables if set.
func Read(cfgFile string) error {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else if os.Getenv("SQ_CONFIG") != "" {
		viper.SetConfigFile(os.Getenv("SQ_CONFIG"))
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name "sqtracker" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.AddConfigPath("../")
		viper.SetConfigName("sqtracker")
	}

	setDefaults()

	viper.SetEnvPrefix("sq")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		return consts.ErrInvalidConfig
	}
	log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	setupLogger(viper.GetString(GeneralLogLevel), viper.GetBool(GeneralLogColour))
	gin.SetMode(viper.GetString(GeneralRunMode))
	return nil
}

func setDefaults() {
	viper.SetDefault(GeneralRunMode, "release")
	viper.SetDefault(GeneralLogLevel, "info")
	viper.SetDefault(GeneralLogColour, true)
	viper.SetDefault(TrackerListen, ":34000")
	viper.SetDefault(TrackerAPIListen, ":34001")
	viper.SetDefault(TrackerAnnounceInterval, 30)
	viper.SetDefault(MinimumRatio, -1.0)
	viper.SetDefault(MaximumHitNRuns, -1)
	viper.SetDefault(BonusPerGB, 1)
	viper.SetDefault(SiteWideFreeleech, false)
	viper.SetDefault(StoreType, "memory")
	viper.SetDefault(CacheType, "memory")
	viper.SetDefault(CacheUserTTL, "60s")
}

func setupLogger(levelStr string, colour bool) {
	log.SetFormatter(&log.TextFormatter{
		ForceColors:      colour,
		DisableTimestamp: true,
	})
	log.SetOutput(os.Stdout)
	level, err := log.ParseLevel(levelStr)
	if err != nil {
		log.Panicln("Invalid log level defined")
	}
	log.SetLevel(level)
}

package cmd

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tdjsnelling/sqtracker-sub000/config"
	"github.com/tdjsnelling/sqtracker-sub000/store"
	"github.com/tdjsnelling/sqtracker-sub000/store/redis"
	"github.com/tdjsnelling/sqtracker-sub000/tracker"
	"github.com/tdjsnelling/sqtracker-sub000/util"
)

func newUserCache() store.UserCache {
	ttl := viper.GetDuration(config.CacheUserTTL)
	if ttl <= 0 {
		ttl = time.Second * 60
	}
	switch viper.GetString(config.CacheType) {
	case "redis":
		return redis.NewUserCache(
			viper.GetString(config.CacheHost),
			viper.GetInt(config.CachePort),
			viper.GetString(config.CachePassword),
			viper.GetInt(config.CacheDatabase),
			ttl)
	case "none":
		return store.NullUserCache{}
	default:
		return store.NewMemoryUserCache(ttl)
	}
}

// serveCmd starts the gateway and the internal admin API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the announce gateway",
	Long:  `Start the announce gateway and the internal admin API`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		backing, err := store.NewStore(config.GetStoreConfig())
		if err != nil {
			log.Fatalf("Could not open backing store: %s", err)
		}

		opts := tracker.NewDefaultOpts()
		opts.Store = backing
		opts.Cache = newUserCache()
		opts.MinRatio = viper.GetFloat64(config.MinimumRatio)
		opts.MaxHitNRuns = viper.GetInt(config.MaximumHitNRuns)
		opts.BonusPerGB = uint64(viper.GetInt64(config.BonusPerGB))
		opts.SiteWideFreeleech = viper.GetBool(config.SiteWideFreeleech)
		opts.UpstreamURL = viper.GetString(config.TrackerUpstreamURL)
		opts.AnnInterval = viper.GetInt(config.TrackerAnnounceInterval)

		tkr, err := tracker.New(ctx, opts)
		if err != nil {
			log.Fatalf("Could not configure tracker: %s", err)
		}

		btOpts := tracker.DefaultHTTPOpts()
		btOpts.ListenAddr = viper.GetString(config.TrackerListen)
		btOpts.Handler = tracker.NewBitTorrentHandler(tkr)
		btServer := tracker.NewHTTPServer(btOpts)

		apiOpts := tracker.DefaultHTTPOpts()
		apiOpts.ListenAddr = viper.GetString(config.TrackerAPIListen)
		apiOpts.Handler = tracker.NewAPIHandler(tkr)
		apiServer := tracker.NewHTTPServer(apiOpts)

		go func() {
			if err := btServer.ListenAndServe(); err != nil {
				log.Errorf("Tracker listener error: %s", err)
			}
		}()
		go func() {
			if err := apiServer.ListenAndServe(); err != nil {
				log.Errorf("API listener error: %s", err)
			}
		}()
		log.Infof("Gateway listening on %s, admin API on %s",
			btOpts.ListenAddr, apiOpts.ListenAddr)

		util.WaitForSignal(ctx, func(c context.Context) error {
			if err := btServer.Shutdown(c); err != nil {
				return err
			}
			if err := apiServer.Shutdown(c); err != nil {
				return err
			}
			return backing.Close()
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/dluxio/hiveonboard/channel"
	"github.com/dluxio/hiveonboard/config"
	"github.com/dluxio/hiveonboard/consolidation"
	"github.com/dluxio/hiveonboard/controllers"
	"github.com/dluxio/hiveonboard/database"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/hive"
	"github.com/dluxio/hiveonboard/logger"
	"github.com/dluxio/hiveonboard/monitor"
	"github.com/dluxio/hiveonboard/notifications"
	"github.com/dluxio/hiveonboard/orchestrator"
	"github.com/dluxio/hiveonboard/pricing"
	"github.com/dluxio/hiveonboard/rccost"
	"github.com/dluxio/hiveonboard/server"
	"github.com/dluxio/hiveonboard/signal"
	"github.com/dluxio/hiveonboard/util/panics"
	"github.com/dluxio/hiveonboard/vault"
	"github.com/dluxio/hiveonboard/version"
)

func main() {
	defer panics.HandlePanic(log, nil)

	cfg, err := config.Parse()
	if err != nil {
		errString := fmt.Sprintf("Error parsing command-line arguments: %s", err)
		_, fErr := fmt.Fprintf(os.Stderr, "%s\n", errString)
		if fErr != nil {
			panic(errString)
		}
		return
	}

	logger.InitLogRotator(cfg.LogFile())
	defer logger.Close()
	err = logger.ParseAndSetLogLevels(cfg.LogLevel)
	if err != nil {
		panic(errors.Errorf("Error setting log levels: %s", err))
	}
	log.Infof("Version %s", version.Version())

	if cfg.Migrate {
		err = database.Migrate(cfg)
		if err != nil {
			panic(errors.Errorf("Error migrating database: %s", err))
		}
		return
	}

	err = database.Connect(cfg)
	if err != nil {
		panic(errors.Errorf("Error connecting to database: %s", err))
	}
	defer func() {
		err := database.Close()
		if err != nil {
			panic(errors.Errorf("Error closing the database: %s", err))
		}
	}()

	db, err := database.DB()
	if err != nil {
		panic(err)
	}
	removed, err := dbaccess.RepairOrphans(db)
	if err != nil {
		panic(errors.Errorf("Error repairing orphan rows: %s", err))
	}
	if removed > 0 {
		log.Warnf("Startup repair removed %d orphan rows", removed)
	}

	keyVault, err := vault.New(cfg.MasterSeed, cfg.EncryptionKey)
	if err != nil {
		panic(errors.Errorf("Error initializing key vault: %s", err))
	}

	hiveClient := hive.NewClient(cfg.HiveNodeURL)
	oracle := pricing.NewOracle(hiveClient, nil)
	rcTracker := rccost.NewTracker(cfg.RCBeaconURL)

	hub := notifications.NewHub(nil)
	defer hub.Close()
	notifier := notifications.NewManager(hub)

	engine := channel.NewEngine(keyVault, oracle, hiveClient)

	paymentMonitor, err := monitor.New(cfg, notifier)
	if err != nil {
		panic(errors.Errorf("Error building payment monitor: %s", err))
	}
	accountOrchestrator, err := orchestrator.New(cfg, hiveClient, rcTracker, notifier)
	if err != nil {
		panic(errors.Errorf("Error building orchestrator: %s", err))
	}
	paymentMonitor.SetConfirmedHook(accountOrchestrator.Wake)

	// First refreshes happen off the startup path so an unreachable price or
	// beacon API cannot block boot.
	spawn(func() {
		err := oracle.Refresh()
		if err != nil {
			log.Warnf("Initial pricing refresh failed: %s", err)
		}
	})
	spawn(func() {
		err := rcTracker.Refresh()
		if err != nil {
			log.Warnf("Initial RC cost refresh failed: %s", err)
		}
	})

	paymentMonitor.Start()
	defer paymentMonitor.Stop()
	accountOrchestrator.Start()
	defer accountOrchestrator.Stop()

	scheduler := startScheduler(engine, oracle, rcTracker, accountOrchestrator)
	defer scheduler.Stop()

	creatorKey, err := hive.DecodeWIF(cfg.HiveCreatorWIF)
	if err != nil {
		panic(errors.Errorf("Error decoding creator key: %s", err))
	}
	adminKey, err := hive.PublicKeyFromPrivate(creatorKey)
	if err != nil {
		panic(errors.Errorf("Error encoding admin key: %s", err))
	}

	services := &controllers.Services{
		Config:        cfg,
		Engine:        engine,
		Monitor:       paymentMonitor,
		Orchestrator:  accountOrchestrator,
		Oracle:        oracle,
		RCTracker:     rcTracker,
		Consolidation: consolidation.NewManager(cfg, keyVault),
		Notifier:      notifier,
		Hub:           hub,
	}
	shutdownServer := server.Start(cfg.HTTPListen, services, adminKey)
	defer shutdownServer()

	interrupt := signal.InterruptListener(log)
	<-interrupt
}

// startScheduler wires the fixed cadences: pricing hourly, RC costs every
// three hours, channel expiry each minute, claims every fifteen minutes,
// capacity health and data purges daily.
func startScheduler(engine *channel.Engine, oracle *pricing.Oracle,
	rcTracker *rccost.Tracker, accountOrchestrator *orchestrator.Orchestrator) *cron.Cron {

	scheduler := cron.New()
	schedule := func(spec string, name string, job func() error) {
		_, err := scheduler.AddFunc(spec, func() {
			err := job()
			if err != nil {
				log.Errorf("Scheduled %s failed: %s", name, err)
			}
		})
		if err != nil {
			panic(errors.Errorf("Error scheduling %s: %s", name, err))
		}
	}

	schedule("@every 1h", "pricing refresh", oracle.Refresh)
	schedule("@every 3h", "RC cost refresh", rcTracker.Refresh)
	schedule("@every 1m", "channel expiry sweep", engine.ExpireSweep)
	schedule("@every 15m", "proactive claim run", func() error {
		_, err := accountOrchestrator.ProactiveClaim()
		return err
	})
	schedule("@daily", "capacity health check", func() error {
		_, err := accountOrchestrator.HealthCheck()
		return err
	})
	schedule("@daily", "pricing purge", oracle.Purge)
	schedule("@daily", "RC cost purge", rcTracker.Purge)

	scheduler.Start()
	return scheduler
}

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/blogstreak/config"
	"github.com/cppla/blogstreak/controllers"
	"github.com/cppla/blogstreak/models"
	"github.com/cppla/blogstreak/routes"
	"github.com/cppla/blogstreak/services"
	"github.com/cppla/blogstreak/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(models.All()...)

	zone, err := services.LoadZone(cfg.TimeZone)
	if err != nil {
		utils.Sugar.Fatalf("invalid streak time zone %q: %v", cfg.TimeZone, err)
	}
	clock := func() time.Time { return time.Now().In(zone) }
	repo := services.NewGormRepository(db)
	streaks := services.NewStreakService(repo,
		services.WithClock(clock),
		services.WithLogger(utils.Named("streak")),
		services.WithDecrementPolicy(services.ParseDecrementPolicy(cfg.DecrementPolicy)),
		services.WithMetrics(utils.Metrics()),
	)
	trending := services.NewTrendingService(repo, clock, utils.Named("trending"))

	// job hours are read in the ledger zone so the reset runs after local midnight
	scheduler := utils.NewScheduler(zone, utils.Named("scheduler"))
	if err := scheduler.AddDaily(controllers.JobStreakReset, cfg.StreakResetHour, 0, controllers.StreakResetJob(streaks)); err != nil {
		utils.Sugar.Fatalf("scheduler: %v", err)
	}
	if err := scheduler.AddDaily(controllers.JobStatsRefresh, cfg.StatsRefreshHour, 0, controllers.StatsRefreshJob(streaks)); err != nil {
		utils.Sugar.Fatalf("scheduler: %v", err)
	}
	if cfg.SchedulerEnabled {
		scheduler.Start(context.Background())
	} else {
		utils.Logger.Info("scheduler disabled; jobs run only on demand")
	}

	r := routes.SetupRouter(db, streaks, trending, scheduler)

	utils.Logger.Info("starting server",
		zap.String("port", cfg.AppPort),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("time_zone", cfg.TimeZone),
		zap.String("decrement_policy", string(streaks.Policy())),
	)
	if err := utils.GraceServer(":"+cfg.AppPort, r, scheduler.Stop); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

package app

import (
	"context"
	"time"

	"github.com/doeshing/gitscope/internal/application/doctor"
	"github.com/doeshing/gitscope/internal/application/explore"
	"github.com/doeshing/gitscope/internal/application/orchestrator"
	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/infrastructure/ai"
	"github.com/doeshing/gitscope/internal/infrastructure/cloner"
	"github.com/doeshing/gitscope/internal/infrastructure/config"
	"github.com/doeshing/gitscope/internal/infrastructure/events"
	"github.com/doeshing/gitscope/internal/infrastructure/github"
	"github.com/doeshing/gitscope/internal/infrastructure/history"
	"github.com/doeshing/gitscope/internal/infrastructure/store"
	"github.com/doeshing/gitscope/internal/pkg/logger"
	"github.com/doeshing/gitscope/internal/ports"
)

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config         domain.Config
	ConfigProvider ports.ConfigProvider
	Logger         ports.Logger
	Cloner         ports.CloneManager
	Store          ports.ResultStore
	Fetcher        ports.RepoFetcher
	Broadcaster    ports.Broadcaster
	Explorer       ports.Explorer
	Orchestrator   *orchestrator.Service
	HistoryStore   ports.HistoryRepository
	DoctorService  *doctor.Service
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, verbose bool) (*Container, error) {
	cfgLoader := config.NewFileLoader("")
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.NewStd(verbose)

	resultStore, err := store.New(cfg.Store.DataDir, log)
	if err != nil {
		return nil, err
	}

	cloneManager := cloner.New(
		cfg.Clone.BasePath,
		time.Duration(cfg.Clone.GraceSeconds)*time.Second,
		cloner.NewExecRunner(),
		log,
	)

	fetcher := github.NewClient(cfg.GitHub, log)
	hub := events.NewHub(log)
	historyStore := history.NewSQLiteStore("")

	stepper, err := ai.NewFactory(log).ForModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	explorer := explore.New(stepper, cfg.Explorer, log)

	orch := orchestrator.New(
		cloneManager,
		resultStore,
		fetcher,
		explorer,
		hub,
		historyStore,
		log,
		time.Duration(cfg.Store.StalenessHours)*time.Hour,
	)

	return &Container{
		Config:         cfg,
		ConfigProvider: cfgLoader,
		Logger:         log,
		Cloner:         cloneManager,
		Store:          resultStore,
		Fetcher:        fetcher,
		Broadcaster:    hub,
		Explorer:       explorer,
		Orchestrator:   orch,
		HistoryStore:   historyStore,
		DoctorService:  &doctor.Service{ConfigProvider: cfgLoader},
	}, nil
}

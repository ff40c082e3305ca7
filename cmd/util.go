package cmd

import (
	"allocbacktest/api"
	"allocbacktest/internal/app"
	"allocbacktest/internal/domain"
	"allocbacktest/internal/repository"
	l1_service "allocbacktest/internal/service/l1"
	l3_service "allocbacktest/internal/service/l3"
	"allocbacktest/internal/util"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"
)

type Dependencies struct {
	Db *sql.DB
	// nil without a database
	AdjustedPriceRepository repository.AdjustedPriceRepository
	PriceRepositories       map[string]repository.PriceRepository
	BacktestApp             app.BacktestApp
	ApiHandler              *api.ApiHandler
}

type InitializeDependenciesInput struct {
	// PriceSource serves every asset whose own data source has no
	// repository. yahoo when empty
	PriceSource string
	// PricesPath enables the csv source
	PricesPath string
	// UseSecrets connects to postgres, and to alpaca when keys are set
	UseSecrets bool
	NumWorkers int
}

func CloseDependencies(deps *Dependencies) {
	if deps.Db == nil {
		return
	}
	err := deps.Db.Close()
	if err != nil {
		log.Fatalf("failed to close db: %v", err)
	}
}

func InitializeDependencies(in InitializeDependenciesInput) (*Dependencies, error) {
	deps := &Dependencies{
		PriceRepositories: map[string]repository.PriceRepository{
			domain.DataSourceYahoo: repository.NewYahooPriceRepository(),
		},
	}

	if in.PricesPath != "" {
		deps.PriceRepositories[domain.DataSourceCsv] = repository.NewCsvPriceRepository(in.PricesPath)
	}

	if in.UseSecrets {
		secrets, err := util.LoadSecrets()
		if err != nil {
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}

		dbConn, err := sql.Open("postgres", secrets.Db.ToConnectionStr())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to db: %w", err)
		}
		deps.Db = dbConn
		deps.AdjustedPriceRepository = repository.NewAdjustedPriceRepository(dbConn)
		deps.PriceRepositories[domain.DataSourcePostgres] = deps.AdjustedPriceRepository

		if secrets.Alpaca.ApiKey != "" {
			deps.PriceRepositories[domain.DataSourceAlpaca] = repository.NewAlpacaPriceRepository(
				secrets.Alpaca.ApiKey,
				secrets.Alpaca.ApiSecret,
				secrets.Alpaca.Endpoint,
			)
		}
	}

	source := in.PriceSource
	if source == "" {
		source = domain.DataSourceYahoo
	}
	defaultRepository, ok := deps.PriceRepositories[source]
	if !ok {
		CloseDependencies(deps)
		return nil, domain.NewConfigurationError("price source %q is not configured", source)
	}

	priceService := l1_service.NewPriceService(deps.PriceRepositories, defaultRepository)
	backtestService := l3_service.NewBacktestService(in.NumWorkers)
	deps.BacktestApp = app.NewBacktestApp(priceService, backtestService)
	deps.ApiHandler = &api.ApiHandler{
		BacktestApp:   deps.BacktestApp,
		AssetRegistry: domain.DefaultAssetRegistry(),
	}

	return deps, nil
}

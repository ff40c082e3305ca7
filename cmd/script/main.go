package main

import (
	"allocbacktest/cmd"
	"allocbacktest/internal/app"
	"allocbacktest/internal/domain"
	"allocbacktest/internal/logger"
	"allocbacktest/internal/repository"
	"allocbacktest/internal/util"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "script",
	Short: "Run allocation backtests and maintain price data locally",
}

var (
	configPath string
	seriesOut  string
	pricesPath string
	numWorkers int
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest every strategy in a yaml config",
	RunE: func(c *cobra.Command, args []string) error {
		config, err := util.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if pricesPath != "" {
			config.PricesPath = pricesPath
		}

		deps, err := cmd.InitializeDependencies(cmd.InitializeDependenciesInput{
			PriceSource: config.PriceSource,
			PricesPath:  config.PricesPath,
			UseSecrets:  config.PriceSource == domain.DataSourcePostgres || config.PriceSource == domain.DataSourceAlpaca,
			NumWorkers:  numWorkers,
		})
		if err != nil {
			return err
		}
		defer cmd.CloseDependencies(deps)

		profile, endProfile := domain.NewProfile()
		ctx := domain.ContextWithProfile(context.Background(), profile)
		ctx = logger.WithLogger(ctx, logger.New())

		result, err := deps.BacktestApp.Run(ctx, *config)
		endProfile()
		if err != nil {
			return err
		}

		fmt.Printf("prices %s to %s\n", result.PricesStart.Format(time.DateOnly), result.PricesEnd.Format(time.DateOnly))
		cmd.WriteSummary(os.Stdout, result.Results)

		if seriesOut == "" {
			return nil
		}
		f, err := os.Create(seriesOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", seriesOut, err)
		}
		defer f.Close()
		return cmd.WriteSeriesCsv(f, result.Results)
	},
}

var (
	symbols    []string
	ingestFrom string
	ingestTo   string
	ingestOut  string
	ingestToDb bool
	ingestSrc  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Copy adjusted prices from yahoo or alpaca into a csv file or postgres",
	RunE: func(c *cobra.Command, args []string) error {
		if (ingestOut == "") == !ingestToDb {
			return fmt.Errorf("exactly one of --out or --db is required")
		}

		in := app.IngestPricesInput{}
		var err error
		if ingestFrom != "" {
			if in.Start, err = time.Parse(time.DateOnly, ingestFrom); err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
		}
		if ingestTo != "" {
			if in.End, err = time.Parse(time.DateOnly, ingestTo); err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
		}

		registry := domain.DefaultAssetRegistry()
		for _, symbol := range symbols {
			symbol = strings.TrimSpace(symbol)
			asset, err := registry.Get(symbol)
			if err != nil {
				asset = domain.NewAsset(symbol, symbol, domain.CurrencyUSD, ingestSrc)
			}
			in.Assets = append(in.Assets, asset)
		}

		deps, err := cmd.InitializeDependencies(cmd.InitializeDependenciesInput{
			PriceSource: ingestSrc,
			UseSecrets:  ingestToDb || ingestSrc == domain.DataSourceAlpaca,
		})
		if err != nil {
			return err
		}
		defer cmd.CloseDependencies(deps)

		source := deps.PriceRepositories[ingestSrc]
		var write app.PriceWriter
		if ingestToDb {
			write = deps.AdjustedPriceRepository.Add
		} else {
			csvRepository := repository.NewCsvPriceRepository(ingestOut)
			write = func(ctx context.Context, prices []domain.AssetPrice) error {
				return csvRepository.WritePrices(prices)
			}
		}

		ctx := logger.WithLogger(context.Background(), logger.New())
		result, err := app.IngestPrices(ctx, source, write, in)
		if err != nil {
			return err
		}

		fmt.Printf("ingested %d prices\n", result.NumPrices)
		for symbol, err := range result.Failed {
			fmt.Printf("%s: %v\n", symbol, err)
		}
		return nil
	},
}

func init() {
	backtestCmd.Flags().StringVar(&configPath, "config", "", "strategy yaml config")
	backtestCmd.Flags().StringVar(&seriesOut, "out", "", "write the daily series of every strategy to this csv")
	backtestCmd.Flags().StringVar(&pricesPath, "prices", "", "long format price csv, overrides pricesPath in the config")
	backtestCmd.Flags().IntVar(&numWorkers, "workers", 4, "strategies backtested concurrently")
	_ = backtestCmd.MarkFlagRequired("config")

	ingestCmd.Flags().StringSliceVar(&symbols, "symbols", nil, "comma separated symbols to ingest")
	ingestCmd.Flags().StringVar(&ingestFrom, "start", "", "first date, yyyy-mm-dd")
	ingestCmd.Flags().StringVar(&ingestTo, "end", "", "last date, yyyy-mm-dd")
	ingestCmd.Flags().StringVar(&ingestOut, "out", "", "write prices to this csv")
	ingestCmd.Flags().BoolVar(&ingestToDb, "db", false, "write prices to the adjusted_price table")
	ingestCmd.Flags().StringVar(&ingestSrc, "source", domain.DataSourceYahoo, "yahoo or alpaca")
	_ = ingestCmd.MarkFlagRequired("symbols")

	rootCmd.AddCommand(backtestCmd, ingestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"allocbacktest/cmd"
	"allocbacktest/internal/logger"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	port        int
	priceSource string
	pricesPath  string
	useDb       bool
)

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve backtests over http",
	RunE: func(c *cobra.Command, args []string) error {
		lg := logger.New()
		lg.Infof("starting api, commit %s", os.Getenv("commit_hash"))

		deps, err := cmd.InitializeDependencies(cmd.InitializeDependenciesInput{
			PriceSource: priceSource,
			PricesPath:  pricesPath,
			UseSecrets:  useDb,
		})
		if err != nil {
			return err
		}
		defer cmd.CloseDependencies(deps)

		return deps.ApiHandler.StartApi(port)
	},
}

func init() {
	rootCmd.Flags().IntVar(&port, "port", 3009, "port to listen on")
	rootCmd.Flags().StringVar(&priceSource, "price-source", "yahoo", "price source for assets without a configured one: yahoo, csv, postgres or alpaca")
	rootCmd.Flags().StringVar(&pricesPath, "prices", "", "long format price csv, enables the csv source")
	rootCmd.Flags().BoolVar(&useDb, "db", false, "load secrets and connect to postgres")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"allocbacktest/cmd"
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
)

type lambdaHandler struct {
	ginLambda *ginadapter.GinLambda
}

func (m lambdaHandler) Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return m.ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	deps, err := cmd.InitializeDependencies(cmd.InitializeDependenciesInput{
		PriceSource: os.Getenv("PRICE_SOURCE"),
		UseSecrets:  os.Getenv("PRICE_SOURCE") == "postgres",
	})
	if err != nil {
		log.Fatal(err)
	}
	defer cmd.CloseDependencies(deps)

	// the router is built once per container, not per request
	handler := lambdaHandler{
		ginLambda: ginadapter.New(deps.ApiHandler.Router()),
	}
	lambda.Start(handler.Handler)
}

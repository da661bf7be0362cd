package main

import (
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/helioslabs/skytest/pkg/runner"
)

func main() {
	log.Printf("Skytest runner starting, task root: %s", os.Getenv("LAMBDA_TASK_ROOT"))

	h := runner.NewHandler()
	lambda.Start(h.Handle)
}

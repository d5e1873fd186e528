package main

import (
	"context"

	"github.com/telegraph-app/telegraph/internal/client/cli"
	"github.com/telegraph-app/telegraph/internal/client/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)
	app.Run(ctx)
}

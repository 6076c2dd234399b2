package main

import (
	"go.uber.org/fx"

	"github.com/printmill/printmill/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}

//go:build tinygo

package main

import (
	"context"

	"kestrel/app"
	"kestrel/hal"
)

func main() {
	h := hal.New()
	if err := app.Run(context.Background(), h, app.Config{Demo: true, Console: true}); err != nil {
		h.Logger().WriteLineString("kestrel: " + err.Error())
	}
	select {}
}

//go:build !(tinygo && bootdebug)

package app

import "kestrel/hal"

func bootStep(hal.Logger, string) {}

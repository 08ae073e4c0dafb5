//go:build tinygo && bootdebug

package app

import (
	"machine"
	"sync"
	"time"

	"kestrel/hal"
)

var (
	bootDiagMu   sync.Mutex
	bootDiagStep string
	bootDiagOnce sync.Once
)

// bootStep records the current boot stage. The first call starts a reporter
// that repeats it on the logger and USB CDC, so a hang shows where it stopped.
func bootStep(l hal.Logger, msg string) {
	bootDiagMu.Lock()
	bootDiagStep = msg
	bootDiagMu.Unlock()

	bootDiagOnce.Do(func() { go bootDiagReport(l) })
}

func bootDiagReport(l hal.Logger) {
	for {
		bootDiagMu.Lock()
		step := bootDiagStep
		bootDiagMu.Unlock()

		line := "bootdiag: " + step
		if l != nil {
			l.WriteLineString(line)
		}
		if usb := machine.USBCDC; usb != nil {
			_, _ = usb.Write([]byte(line + "\r\n"))
		}

		time.Sleep(250 * time.Millisecond)
	}
}

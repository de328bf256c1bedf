//go:build rtmidi

package main

import (
	// registers the rtmidi driver, requires cgo
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

//go:build linux

package audio

import "testing"

func TestIsMonitor(t *testing.T) {
	if !isMonitor("alsa_output.pci-0000_00_1f.3.analog-stereo.monitor") {
		t.Error("output monitor not detected")
	}
	if isMonitor("alsa_input.pci-0000_00_1f.3.analog-stereo") {
		t.Error("microphone treated as monitor")
	}
}

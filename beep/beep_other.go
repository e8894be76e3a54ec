//go:build !linux && !darwin

package beep

// No playback backend here; cues are silent.

func Init()      {}
func PlayAlert() {}
func PlayError() {}

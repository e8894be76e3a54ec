package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"slowdown/audio"
	"slowdown/config"
	"slowdown/doctor"
)

var devicesSelect bool

func newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Args:  cobra.NoArgs,
		RunE:  runDevicesCmd,
	}
	cmd.Flags().BoolVar(&devicesSelect, "select", false, "pick the microphone interactively and save it to the config")
	return cmd
}

func runDevicesCmd(cmd *cobra.Command, _ []string) error {
	audioCtx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("initializing audio: %w", err)
	}
	defer audioCtx.Close()

	settings, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	reg := audio.NewRegistry(audioCtx)

	if devicesSelect {
		return selectAndSave(cmd, reg, settings)
	}

	inputs, err := reg.ListInputDevices()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Microphones:")
	if len(inputs) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, d := range inputs {
		fmt.Fprintf(w, "  %s%s\n", d.Name, deviceTags(d, settings.Device()))
	}

	fmt.Fprintln(w, "System audio:")
	sys, err := reg.SystemSource()
	switch {
	case errors.Is(err, audio.ErrNoMonitorSource):
		fmt.Fprintln(w, "  (not available on this system)")
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "  %s\n", sys.Name)
	}
	return nil
}

func deviceTags(d audio.DeviceInfo, configured string) string {
	tags := ""
	if d.IsDefault {
		tags += " (default)"
	}
	if configured != "" && (d.Name == configured || d.ID == configured) {
		tags += " (configured)"
	}
	if audio.IsBluetooth(d.Name) {
		tags += " [lower audio quality]"
	}
	return tags
}

func selectAndSave(cmd *cobra.Command, reg *audio.Registry, settings *config.Settings) error {
	inputs, err := reg.ListInputDevices()
	if err != nil {
		return err
	}
	dev, err := audio.SelectDevice(inputs, settings.Device())
	if err != nil {
		if errors.Is(err, audio.ErrPickerCancelled) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
		return err
	}
	settings.SetDevice(dev.Name)
	if err := settings.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Using %s (saved to %s)\n", dev.Name, settings.Path())
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create the config file if missing and print its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath()
			created, err := config.WriteDefault(path)
			if err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			if created {
				fmt.Fprintf(cmd.ErrOrStderr(), "Created %s\n", path)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, audio devices and transcription",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if code := doctor.Run(configPath()); code != 0 {
				return errors.New("doctor: some checks failed")
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "slowdown %s\n", version)
		},
	}
}

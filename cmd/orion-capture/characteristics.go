package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/e7canasta/orion-care-sensor/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/properties"
)

// NewCharacteristicsCommand prints the camera's static characteristics.
func NewCharacteristicsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "characteristics",
		Short: "Print static camera characteristics as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadProperties(opts.cfg)
			if err != nil {
				return err
			}
			chars, err := store.GetStaticCharacteristics(opts.cfg.CameraID)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(chars)
		},
	}
}

// loadProperties reads the properties file, or builds the built-in OV5640
// profile at the configured device path.
func loadProperties(cfg *config.Config) (*properties.Store, error) {
	if cfg.PropertiesFile != "" {
		store, err := properties.LoadFile(cfg.PropertiesFile)
		if err != nil {
			return nil, fmt.Errorf("properties: %w", err)
		}
		return store, nil
	}

	path := cfg.Source.DevicePath
	if path == "" {
		path = fmt.Sprintf("/dev/video%d", cfg.CameraID)
	}
	return properties.NewStore(properties.OV5640(cfg.CameraID, path)), nil
}

package cameras

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/platewatch-go/internal/conf"
	"github.com/tphakala/platewatch-go/internal/trackstore"
)

// defaultCameras is the garage layout seeded on fresh deployments.
var defaultCameras = []trackstore.CameraMetadata{
	{CameraID: "camera1", Latitude: 12.968194, Longitude: 79.155917, Name: "Main Gate"},
	{CameraID: "camera2", Latitude: 12.968806, Longitude: 79.155306, Name: "GDN CAM 2"},
}

// Command creates the camera administration command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cameras",
		Short: "Manage camera metadata",
	}

	cmd.AddCommand(
		seedCommand(settings),
		listCommand(settings),
		setCommand(settings),
	)

	return cmd
}

func seedCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the default camera metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := trackstore.New(settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			for i := range defaultCameras {
				cam := &defaultCameras[i]
				if err := store.SetCameraMetadata(context.Background(), cam); err != nil {
					return fmt.Errorf("seeding %s: %w", cam.CameraID, err)
				}
				fmt.Printf("seeded %s: %s (%v, %v)\n", cam.CameraID, cam.Name, cam.Latitude, cam.Longitude)
			}
			return nil
		},
	}
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered cameras",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := trackstore.New(settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cameras, err := store.ListCameras(context.Background())
			if err != nil {
				return err
			}
			if len(cameras) == 0 {
				fmt.Println("no cameras registered")
				return nil
			}
			for _, cam := range cameras {
				fmt.Printf("%-12s %-24s lat=%v lon=%v\n", cam.CameraID, cam.Name, cam.Latitude, cam.Longitude)
			}
			return nil
		},
	}
}

func setCommand(settings *conf.Settings) *cobra.Command {
	var (
		lat  float64
		lon  float64
		name string
	)

	cmd := &cobra.Command{
		Use:   "set <camera-id>",
		Short: "Register or update one camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := trackstore.New(settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			meta := &trackstore.CameraMetadata{
				CameraID:  args[0],
				Latitude:  lat,
				Longitude: lon,
				Name:      name,
			}
			if err := store.SetCameraMetadata(context.Background(), meta); err != nil {
				return err
			}
			fmt.Printf("stored %s\n", meta.CameraID)
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Camera latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Camera longitude")
	cmd.Flags().StringVar(&name, "name", "", "Camera display name")

	return cmd
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourorg/camera-dashboard/internal/store"
)

var (
	filterStatus   string
	filterBrand    string
	filterLocation string
	searchTerm     string
	sortBy         string
	sortDesc       bool
	showInactive   bool
)

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "Manage cameras",
	Long:  `List cameras and connect or disconnect them, one at a time or in bulk.`,
}

var camerasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cameras",
	Example: `  camctl cameras list --brand Dahua --sort lastUpdated --desc
  camctl cameras list --search lobby --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := loadCameras(ctx); err != nil {
			return err
		}

		q := store.DefaultQuery()
		if filterStatus != "" {
			q.Filters.Status = filterStatus
		}
		if filterBrand != "" {
			q.Filters.Brand = filterBrand
		}
		if filterLocation != "" {
			q.Filters.Location = filterLocation
		}
		q.Search = searchTerm
		q.ShowInactive = showInactive
		if f := store.SortField(sortBy); f.Valid() {
			q.SortBy = f
		} else if sortBy != "" {
			return fmt.Errorf("unknown sort field %q", sortBy)
		}
		if sortDesc {
			q.SortOrder = store.Descending
		}

		cams := store.Filter(dash.Store().Cameras(), q)
		if jsonOutput {
			return printJSON(cams)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tBRAND\tLOCATION\tIP\tACTIVE")
		fmt.Fprintln(w, "--\t----\t-----\t--------\t--\t------")
		for _, c := range cams {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n", c.ID, c.DisplayName, c.Brand, c.Location, c.IPAddress, c.IsActive)
		}
		return w.Flush()
	},
}

var camerasConnectCmd = &cobra.Command{
	Use:   "connect CAMERA_ID",
	Short: "Connect a camera and start its stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := loadCameras(ctx); err != nil {
			return err
		}
		if err := dash.Store().ConnectCamera(ctx, args[0]); err != nil {
			return err
		}
		return printCamera(args[0])
	},
}

var camerasDisconnectCmd = &cobra.Command{
	Use:   "disconnect CAMERA_ID",
	Short: "Stop a camera's stream and disconnect it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := loadCameras(ctx); err != nil {
			return err
		}
		if err := dash.Store().DisconnectCamera(ctx, args[0]); err != nil {
			return err
		}
		return printCamera(args[0])
	},
}

var camerasConnectAllCmd = &cobra.Command{
	Use:   "connect-all",
	Short: "Connect every active camera in batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := loadCameras(ctx); err != nil {
			return err
		}
		res, err := dash.Store().ConnectAllCameras(ctx)
		return printBulk(res, err)
	},
}

var camerasConnectLocationCmd = &cobra.Command{
	Use:   "connect-location LOCATION",
	Short: "Connect the active cameras at one location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := loadCameras(ctx); err != nil {
			return err
		}
		res, err := dash.Store().ConnectCamerasByLocation(ctx, args[0])
		return printBulk(res, err)
	},
}

var camerasDisconnectAllCmd = &cobra.Command{
	Use:   "disconnect-all",
	Short: "Disconnect every camera",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := loadCameras(ctx); err != nil {
			return err
		}
		// A fresh load marks everything disconnected, so target every active
		// camera rather than only the locally connected ones.
		st := dash.Store()
		var ids []string
		for _, c := range st.Cameras() {
			if c.IsActive {
				ids = append(ids, c.ID)
			}
		}
		res, err := st.DisconnectCameras(ctx, ids)
		return printBulk(res, err)
	},
}

var camerasStreamStatusCmd = &cobra.Command{
	Use:   "stream-status CAMERA_ID",
	Short: "Ask the streaming service whether a camera has a live session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		connected, err := dash.Streaming().IsConnected(ctx, args[0])
		if err != nil {
			return fmt.Errorf("error fetching stream status: %w", err)
		}
		if jsonOutput {
			return printJSON(map[string]any{"camera_id": args[0], "connected": connected})
		}
		fmt.Printf("%s: connected=%v\n", args[0], connected)
		return nil
	},
}

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List distinct camera locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listValues(cmd, func(st *store.Store) []string { return st.GetUniqueLocations() })
	},
}

var brandsCmd = &cobra.Command{
	Use:   "brands",
	Short: "List distinct camera brands",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listValues(cmd, func(st *store.Store) []string { return st.GetUniqueBrands() })
	},
}

func listValues(cmd *cobra.Command, values func(*store.Store) []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	if err := loadCameras(ctx); err != nil {
		return err
	}
	out := values(dash.Store())
	if jsonOutput {
		return printJSON(out)
	}
	for _, v := range out {
		fmt.Println(v)
	}
	return nil
}

func printCamera(id string) error {
	cam, ok := dash.Store().GetCamera(id)
	if !ok {
		return fmt.Errorf("camera %s not found", id)
	}
	if jsonOutput {
		return printJSON(cam)
	}
	fmt.Printf("%s (%s): status=%s connected=%v streaming=%v\n", cam.DisplayName, cam.ID, cam.Status, cam.IsConnected, cam.IsStreaming)
	for _, n := range dash.Notifications().Recent() {
		fmt.Printf("  [%s] %s: %s\n", n.Level, n.Title, n.Message)
	}
	return nil
}

func printBulk(res store.BulkResult, err error) error {
	if jsonOutput {
		if perr := printJSON(res); perr != nil {
			return perr
		}
		return err
	}

	fmt.Printf("Total: %d  Succeeded: %d  Failed: %d\n", res.Total, res.Succeeded, res.Failed)
	if len(res.Errors) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CAMERA\tERROR")
		for id, msg := range res.Errors {
			fmt.Fprintf(w, "%s\t%s\n", id, msg)
		}
		w.Flush()
	}
	return err
}

func init() {
	rootCmd.AddCommand(camerasCmd)
	rootCmd.AddCommand(locationsCmd)
	rootCmd.AddCommand(brandsCmd)

	camerasCmd.AddCommand(camerasListCmd)
	camerasCmd.AddCommand(camerasConnectCmd)
	camerasCmd.AddCommand(camerasDisconnectCmd)
	camerasCmd.AddCommand(camerasConnectAllCmd)
	camerasCmd.AddCommand(camerasConnectLocationCmd)
	camerasCmd.AddCommand(camerasDisconnectAllCmd)
	camerasCmd.AddCommand(camerasStreamStatusCmd)

	camerasListCmd.Flags().StringVar(&filterStatus, "status", "", "Filter by status (disconnected, connecting, connected, error)")
	camerasListCmd.Flags().StringVar(&filterBrand, "brand", "", "Filter by brand")
	camerasListCmd.Flags().StringVar(&filterLocation, "location", "", "Filter by location")
	camerasListCmd.Flags().StringVar(&searchTerm, "search", "", "Search name, IP, brand, model, location and description")
	camerasListCmd.Flags().StringVar(&sortBy, "sort", "name", "Sort by name, status, lastUpdated, location or brand")
	camerasListCmd.Flags().BoolVar(&sortDesc, "desc", false, "Sort descending")
	camerasListCmd.Flags().BoolVar(&showInactive, "all", false, "Include inactive cameras")
}
